// Package types provides type definitions for structured data used throughout the prospect-reports system.
package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputRecord is one company row accepted by the record validator.
// Records are treated as immutable once produced.
type InputRecord struct {
	CompanyName string `json:"company_name" validate:"required"`
	WebsiteURL  string `json:"website_url" validate:"required,url"`
	Offer       string `json:"offer" validate:"required"`
}

// ValidationError reports a record that failed struct validation.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

var recordValidator = validator.New()

// Validate checks the record's required fields and URL format.
func (r InputRecord) Validate() error {
	err := recordValidator.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   fe.Field(),
			Message: describeTag(fe.Tag()),
			Cause:   err,
		}
	}
	return &ValidationError{Message: err.Error(), Cause: err}
}

// String returns a short label for logs.
func (r InputRecord) String() string {
	return fmt.Sprintf("%s <%s>", strings.TrimSpace(r.CompanyName), r.WebsiteURL)
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + tag + " check"
	}
}

package reports

import (
	"errors"
	"fmt"
)

// ErrEmptyReport is returned when there is no report text to work on.
var ErrEmptyReport = errors.New("report text is empty")

// APICallError represents a failed call to the generation service.
type APICallError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	prefix := "API call failed"
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s API call failed", e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

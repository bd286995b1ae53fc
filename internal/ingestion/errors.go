package ingestion

import "fmt"

// FormatError reports an upload that cannot produce any records: a bad
// header, an unreadable file, or no valid rows at all.
type FormatError struct {
	Message string
	Cause   error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("format error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

package job

import (
	"errors"
	"fmt"
	"strings"
)

// Stage identifies which collaborator call a failure came from.
type Stage string

// Stages in execution order.
const (
	StageGenerate Stage = "generate"
	StageFormat   Stage = "format"
)

// Failure messages recorded when a stage returns nothing usable.
const (
	MsgEmptyReport    = "AI failed to generate a report."
	MsgEmptyFormatted = "AI failed to format the report."
)

// UnknownReason is recorded when a failure carries no description.
const UnknownReason = "unknown error"

// CancelledPrefix starts the failure reason of jobs stopped by cancellation.
const CancelledPrefix = "cancelled: "

// StageFailure describes why a stage did not produce a result.
type StageFailure struct {
	Stage   Stage
	Message string
	Cause   error
}

func (e *StageFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s stage failed: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s stage failed: %s", e.Stage, e.Message)
}

func (e *StageFailure) Unwrap() error {
	return e.Cause
}

// Reason converts err into the text stored as a job's failure reason: the
// underlying cause's description when there is one, otherwise the stage
// message, otherwise UnknownReason.
func Reason(err error) string {
	if err == nil {
		return UnknownReason
	}
	var sf *StageFailure
	if errors.As(err, &sf) {
		if sf.Cause != nil {
			if msg := sf.Cause.Error(); msg != "" {
				return msg
			}
		}
		if sf.Message != "" {
			return sf.Message
		}
		return UnknownReason
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownReason
}

// IsCancelled reports whether reason was recorded for a cancelled job.
func IsCancelled(reason string) bool {
	return strings.HasPrefix(reason, CancelledPrefix)
}

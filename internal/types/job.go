package types

import "time"

// JobStatus is the lifecycle state of a single record's processing attempt.
type JobStatus string

// Job status values. Completed and Failed are terminal.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are permitted from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobQueued:
		return to == JobProcessing
	case JobProcessing:
		return to == JobCompleted || to == JobFailed
	default:
		return false
	}
}

// Job tracks one InputRecord through report generation.
//
// ID starts out equal to LocalID and is replaced by the document ID once the
// outcome has been persisted. LocalID never changes.
type Job struct {
	ID              string      `json:"id"`
	LocalID         string      `json:"local_id"`
	Record          InputRecord `json:"record"`
	Status          JobStatus   `json:"status"`
	RawReport       string      `json:"raw_report,omitempty"`
	FormattedReport string      `json:"formatted_report,omitempty"`
	FailureReason   string      `json:"failure_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	FinishedAt      *time.Time  `json:"finished_at,omitempty"`
}

// NewJob returns a queued job for rec.
func NewJob(localID string, rec InputRecord, now time.Time) *Job {
	return &Job{
		ID:        localID,
		LocalID:   localID,
		Record:    rec,
		Status:    JobQueued,
		CreatedAt: now,
	}
}

// Clone returns a copy safe to hand to other goroutines.
func (j *Job) Clone() Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

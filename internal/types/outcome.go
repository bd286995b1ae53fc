package types

import "time"

// Outcome is the durable document written once per terminal Job.
type Outcome struct {
	OwnerID         string    `json:"owner_id"`
	CompanyName     string    `json:"company_name"`
	WebsiteURL      string    `json:"website_url"`
	Offer           string    `json:"offer"`
	Status          JobStatus `json:"status"`
	RawReport       string    `json:"raw_report,omitempty"`
	FormattedReport string    `json:"formatted_report,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	PersistError    string    `json:"persist_error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// StoredOutcome is an Outcome as read back from the document store.
type StoredOutcome struct {
	ID string `json:"id"`
	Outcome
	StoredAt time.Time `json:"stored_at"`
}

// NewOutcome builds the outcome document for a terminal job.
func NewOutcome(ownerID string, job *Job) *Outcome {
	o := &Outcome{
		OwnerID:     ownerID,
		CompanyName: job.Record.CompanyName,
		WebsiteURL:  job.Record.WebsiteURL,
		Offer:       job.Record.Offer,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
	}
	switch job.Status {
	case JobCompleted:
		o.RawReport = job.RawReport
		o.FormattedReport = job.FormattedReport
	case JobFailed:
		o.FailureReason = job.FailureReason
	}
	return o
}

// Fallback returns a reduced copy recording why the primary write failed.
// Report bodies are dropped.
func (o *Outcome) Fallback(writeErr error) *Outcome {
	f := *o
	f.RawReport = ""
	f.FormattedReport = ""
	f.PersistError = "unknown error"
	if writeErr != nil && writeErr.Error() != "" {
		f.PersistError = writeErr.Error()
	}
	return &f
}

// Summary aggregates the statuses of a batch's jobs.
type Summary struct {
	Total           int  `json:"total"`
	Queued          int  `json:"queued"`
	Processing      int  `json:"processing"`
	Completed       int  `json:"completed"`
	Failed          int  `json:"failed"`
	PersistFailures int  `json:"persist_failures"`
	Done            bool `json:"done"`
}

// NeedsAttention is the number of records that did not produce a report.
func (s Summary) NeedsAttention() int {
	return s.Failed
}

package pipeline

import (
	"time"

	"github.com/jonathan/prospect-reports/internal/types"
)

// EventKind classifies a ProgressEvent.
type EventKind string

// Event kinds, in the order a single job produces them. EventDone is sent
// once per batch. EventSnapshot is never published by a batch; forwarders
// use it to describe the state at the moment they subscribed.
const (
	EventSnapshot      EventKind = "snapshot"
	EventQueued        EventKind = "queued"
	EventStatus        EventKind = "status"
	EventPersisted     EventKind = "persisted"
	EventPersistFailed EventKind = "persist_failed"
	EventDone          EventKind = "done"
)

// ProgressEvent represents a progress update during batch execution
type ProgressEvent struct {
	Kind    EventKind       `json:"kind"`
	BatchID string          `json:"batch_id"`
	Job     *types.Job      `json:"job,omitempty"`
	Jobs    []types.Job     `json:"jobs,omitempty"`
	From    types.JobStatus `json:"from,omitempty"`
	Message string          `json:"message,omitempty"`
	Summary types.Summary   `json:"summary"`
	Time    time.Time       `json:"time"`
}

// ProgressCallback is called when batch progress occurs. Calls are
// serialized per batch and arrive in event order.
type ProgressCallback func(event ProgressEvent)

// maxEvents is the most events a batch of n jobs can produce.
func maxEvents(n int) int {
	return 4*n + 1
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/types"
)

// Snapshot is a point-in-time copy of a batch.
type Snapshot struct {
	BatchID   string        `json:"batch_id"`
	OwnerID   string        `json:"owner_id"`
	CreatedAt time.Time     `json:"created_at"`
	Jobs      []types.Job   `json:"jobs"`
	Summary   types.Summary `json:"summary"`
}

// Batch tracks the jobs of one submission. Jobs are executed on their own
// goroutines; the batch keeps a copy of each that is refreshed on every
// transition, so reads never race with execution.
type Batch struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	// notifyMu serializes event delivery so callbacks see events in order
	// and may call back into the batch.
	notifyMu sync.Mutex

	mu              sync.Mutex
	order           []string
	jobs            map[string]*types.Job
	persistFailures int
	finished        bool
	subs            map[int]chan ProgressEvent
	nextSub         int
	capacity        int

	done       chan struct{}
	onProgress ProgressCallback
	now        func() time.Time
	logger     *zap.Logger
}

func newBatch(id, ownerID string, size int, onProgress ProgressCallback, now func() time.Time, logger *zap.Logger) *Batch {
	return &Batch{
		ID:         id,
		OwnerID:    ownerID,
		CreatedAt:  now(),
		order:      make([]string, 0, size),
		jobs:       make(map[string]*types.Job, size),
		subs:       make(map[int]chan ProgressEvent),
		capacity:   maxEvents(size),
		done:       make(chan struct{}),
		onProgress: onProgress,
		now:        now,
		logger:     logger,
	}
}

// Done is closed once every job is terminal and its persistence attempt has
// returned.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch is done or ctx ends.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns copies of all jobs in submission order plus the summary.
func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Summary returns the current aggregate counts.
func (b *Batch) Summary() types.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaryLocked()
}

// Job returns a copy of the job with the given local ID.
func (b *Batch) Job(localID string) (types.Job, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[localID]
	if !ok {
		return types.Job{}, false
	}
	return j.Clone(), true
}

// Subscribe returns a consistent snapshot together with a channel carrying
// every event published after it. The channel is closed after the done
// event, or immediately if the batch has already finished. Call the returned
// function to stop receiving events early.
func (b *Batch) Subscribe() (Snapshot, <-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.snapshotLocked()
	ch := make(chan ProgressEvent, b.capacity)
	if b.finished {
		close(ch)
		return snap, ch, func() {}
	}

	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return snap, ch, cancel
}

// OnTransition records a status change reported by the job state machine.
func (b *Batch) OnTransition(job types.Job, from, to types.JobStatus) {
	b.publish(func() (ProgressEvent, bool) {
		cur, ok := b.jobs[job.LocalID]
		if !ok {
			return ProgressEvent{}, false
		}
		// Keep the document ID if persistence already assigned one.
		id := cur.ID
		*cur = job.Clone()
		cur.ID = id
		ev := b.eventLocked(EventStatus, cur)
		ev.From = from
		if to == types.JobFailed {
			ev.Message = job.FailureReason
		}
		return ev, true
	})
}

func (b *Batch) add(j *types.Job) {
	b.publish(func() (ProgressEvent, bool) {
		c := j.Clone()
		b.order = append(b.order, c.LocalID)
		b.jobs[c.LocalID] = &c
		return b.eventLocked(EventQueued, &c), true
	})
}

func (b *Batch) persisted(localID, documentID string) {
	b.publish(func() (ProgressEvent, bool) {
		cur, ok := b.jobs[localID]
		if !ok {
			return ProgressEvent{}, false
		}
		cur.ID = documentID
		return b.eventLocked(EventPersisted, cur), true
	})
}

func (b *Batch) persistFailed(localID string, writeErr, fallbackErr error) {
	b.publish(func() (ProgressEvent, bool) {
		cur, ok := b.jobs[localID]
		if !ok {
			return ProgressEvent{}, false
		}
		b.persistFailures++
		ev := b.eventLocked(EventPersistFailed, cur)
		ev.Message = fmt.Sprintf("failed to save report: %v", writeErr)
		if fallbackErr != nil {
			ev.Message += fmt.Sprintf(" (fallback record also failed: %v)", fallbackErr)
		}
		return ev, true
	})
}

func (b *Batch) finish() {
	b.publish(func() (ProgressEvent, bool) {
		if b.finished {
			return ProgressEvent{}, false
		}
		b.finished = true
		return b.eventLocked(EventDone, nil), true
	})

	b.mu.Lock()
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()
	close(b.done)
}

// publish applies update under the state lock, fans the resulting event out
// to subscribers and then invokes the progress callback.
func (b *Batch) publish(update func() (ProgressEvent, bool)) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	ev, ok := update()
	if ok {
		for id, ch := range b.subs {
			select {
			case ch <- ev:
			default:
				// Only reachable if more events are published than the
				// batch size allows for.
				b.logger.Error("pipeline: subscriber buffer full, dropping subscriber",
					zap.String("batch_id", b.ID), zap.Int("subscriber", id))
				close(ch)
				delete(b.subs, id)
			}
		}
	}
	b.mu.Unlock()

	if ok && b.onProgress != nil {
		b.onProgress(ev)
	}
}

func (b *Batch) eventLocked(kind EventKind, j *types.Job) ProgressEvent {
	ev := ProgressEvent{
		Kind:    kind,
		BatchID: b.ID,
		Summary: b.summaryLocked(),
		Time:    b.now(),
	}
	if j != nil {
		c := j.Clone()
		ev.Job = &c
	}
	return ev
}

func (b *Batch) summaryLocked() types.Summary {
	s := types.Summary{
		Total:           len(b.order),
		PersistFailures: b.persistFailures,
		Done:            b.finished,
	}
	for _, id := range b.order {
		switch b.jobs[id].Status {
		case types.JobQueued:
			s.Queued++
		case types.JobProcessing:
			s.Processing++
		case types.JobCompleted:
			s.Completed++
		case types.JobFailed:
			s.Failed++
		}
	}
	return s
}

func (b *Batch) snapshotLocked() Snapshot {
	jobs := make([]types.Job, 0, len(b.order))
	for _, id := range b.order {
		jobs = append(jobs, b.jobs[id].Clone())
	}
	return Snapshot{
		BatchID:   b.ID,
		OwnerID:   b.OwnerID,
		CreatedAt: b.CreatedAt,
		Jobs:      jobs,
		Summary:   b.summaryLocked(),
	}
}

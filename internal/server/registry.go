package server

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/prospect-reports/internal/pipeline"
)

// registry keeps submitted batches addressable by ID. Finished batches are
// dropped once they are older than the retention period.
type registry struct {
	mu        sync.Mutex
	batches   map[string]*pipeline.Batch
	retention time.Duration
	now       func() time.Time
}

func newRegistry(retention time.Duration, now func() time.Time) *registry {
	return &registry{
		batches:   make(map[string]*pipeline.Batch),
		retention: retention,
		now:       now,
	}
}

func (r *registry) add(b *pipeline.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
	r.batches[b.ID] = b
}

// get returns the batch only if it belongs to ownerID.
func (r *registry) get(id, ownerID string) (*pipeline.Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.OwnerID != ownerID {
		return nil, false
	}
	return b, true
}

// wait blocks until every registered batch is done or ctx ends.
func (r *registry) wait(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]*pipeline.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		pending = append(pending, b)
	}
	r.mu.Unlock()

	for _, b := range pending {
		if err := b.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *registry) pruneLocked() {
	cutoff := r.now().Add(-r.retention)
	for id, b := range r.batches {
		select {
		case <-b.Done():
			if b.CreatedAt.Before(cutoff) {
				delete(r.batches, id)
			}
		default:
		}
	}
}

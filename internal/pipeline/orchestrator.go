// Package pipeline runs batches of report jobs. Every record in a batch gets
// its own job; jobs run concurrently up to a configurable limit, fail
// independently of each other, and have their outcome persisted once they
// reach a terminal status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/prospect-reports/internal/job"
	"github.com/jonathan/prospect-reports/internal/types"
)

// DefaultMaxConcurrency is the job limit used when none is configured.
const DefaultMaxConcurrency = 8

// DefaultPersistTimeout bounds each outcome write.
const DefaultPersistTimeout = 30 * time.Second

// Batch-level errors. No job is started when Start returns one of these.
var (
	ErrEmptyBatch    = errors.New("batch contains no records")
	ErrOwnerRequired = errors.New("owner ID is required")
)

// Store persists terminal job outcomes and returns the document ID.
type Store interface {
	AppendOutcome(ctx context.Context, ownerID string, outcome *types.Outcome) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	// MaxConcurrency caps how many jobs run at once. Zero means no limit.
	MaxConcurrency int
	// PersistTimeout bounds each outcome write. Defaults to DefaultPersistTimeout.
	PersistTimeout time.Duration
	OnProgress     ProgressCallback
	Logger         *zap.Logger
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator starts batches.
type Orchestrator struct {
	gen   job.Generator
	fmtr  job.Formatter
	store Store
	opts  Options
}

// NewOrchestrator creates an Orchestrator. A nil store disables persistence.
func NewOrchestrator(gen job.Generator, fmtr job.Formatter, store Store, opts Options) *Orchestrator {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Orchestrator{gen: gen, fmtr: fmtr, store: store, opts: opts}
}

// Start validates the records, queues one job per record and begins
// executing them in the background. It returns as soon as the jobs are
// queued.
func (o *Orchestrator) Start(ctx context.Context, ownerID string, records []types.InputRecord) (*Batch, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	batchID := o.opts.NewID()
	logger := o.opts.Logger.With(zap.String("batch_id", batchID), zap.String("owner_id", ownerID))
	batch := newBatch(batchID, ownerID, len(records), o.opts.OnProgress, o.opts.Now, logger)

	jobs := make([]*types.Job, 0, len(records))
	for _, rec := range records {
		j := types.NewJob(o.opts.NewID(), rec, o.opts.Now())
		batch.add(j)
		jobs = append(jobs, j)
	}

	machine := job.NewMachine(o.gen, o.fmtr, job.Options{
		Listener: batch,
		Logger:   logger,
		Now:      o.opts.Now,
	})

	logger.Info("pipeline: batch started",
		zap.Int("jobs", len(jobs)),
		zap.Int("max_concurrency", o.opts.MaxConcurrency))

	go o.execute(ctx, batch, machine, jobs, logger)
	return batch, nil
}

// Run starts a batch and waits for it to finish. Job failures are reported
// through the batch, not as an error.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, records []types.InputRecord) (*Batch, error) {
	batch, err := o.Start(ctx, ownerID, records)
	if err != nil {
		return nil, err
	}
	<-batch.Done()
	return batch, nil
}

func (o *Orchestrator) execute(ctx context.Context, batch *Batch, machine *job.Machine, jobs []*types.Job, logger *zap.Logger) {
	start := time.Now()

	// Jobs never return an error to the group, so one failure cannot
	// cancel its siblings.
	var g errgroup.Group
	if o.opts.MaxConcurrency > 0 {
		g.SetLimit(o.opts.MaxConcurrency)
	}
	for _, j := range jobs {
		g.Go(func() error {
			machine.Execute(ctx, j)
			o.persist(ctx, batch, j, logger)
			return nil
		})
	}
	_ = g.Wait()

	batch.finish()
	s := batch.Summary()
	logger.Info("pipeline: batch finished",
		zap.Int("completed", s.Completed),
		zap.Int("failed", s.Failed),
		zap.Int("persist_failures", s.PersistFailures),
		zap.Duration("elapsed", time.Since(start)))
}

// persist writes the outcome of a terminal job. A failed write is followed by
// one best-effort fallback document; neither error escapes.
func (o *Orchestrator) persist(ctx context.Context, batch *Batch, j *types.Job, logger *zap.Logger) {
	if o.store == nil || !j.Status.IsTerminal() {
		return
	}
	log := logger.With(zap.String("job_id", j.LocalID), zap.String("company", j.Record.CompanyName))

	// Cancelled jobs are still recorded.
	base := context.WithoutCancel(ctx)
	outcome := types.NewOutcome(batch.OwnerID, j)

	docID, err := o.append(base, batch.OwnerID, outcome)
	if err == nil {
		j.ID = docID
		batch.persisted(j.LocalID, docID)
		log.Debug("pipeline: outcome saved", zap.String("document_id", docID))
		return
	}

	log.Error("pipeline: failed to save outcome", zap.Error(err))
	_, fallbackErr := o.append(base, batch.OwnerID, outcome.Fallback(err))
	if fallbackErr != nil {
		log.Error("pipeline: failed to save fallback outcome", zap.Error(fallbackErr))
	}
	batch.persistFailed(j.LocalID, err, fallbackErr)
}

func (o *Orchestrator) append(ctx context.Context, ownerID string, outcome *types.Outcome) (id string, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.PersistTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			id = ""
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	id, err = o.store.AppendOutcome(ctx, ownerID, outcome)
	if err == nil && id == "" {
		err = errors.New("store returned an empty document ID")
	}
	return id, err
}

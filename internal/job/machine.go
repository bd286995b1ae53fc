// Package job drives a single record through report generation:
// queued, processing, then completed or failed.
package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/types"
)

// Generator writes the raw report for a record (stage 1).
type Generator interface {
	Generate(ctx context.Context, rec types.InputRecord) (string, error)
}

// Formatter restructures a raw report (stage 2).
type Formatter interface {
	Format(ctx context.Context, raw string) (string, error)
}

// Listener is notified after every status change. It receives a copy of the
// job and is called on the goroutine running the job.
type Listener interface {
	OnTransition(job types.Job, from, to types.JobStatus)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(job types.Job, from, to types.JobStatus)

// OnTransition calls f.
func (f ListenerFunc) OnTransition(job types.Job, from, to types.JobStatus) {
	f(job, from, to)
}

// Options configures a Machine.
type Options struct {
	Listener Listener
	Logger   *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Machine executes jobs. One Machine may run many jobs concurrently.
type Machine struct {
	gen      Generator
	fmtr     Formatter
	listener Listener
	logger   *zap.Logger
	now      func() time.Time
}

// NewMachine creates a Machine.
func NewMachine(gen Generator, fmtr Formatter, opts Options) *Machine {
	m := &Machine{
		gen:      gen,
		fmtr:     fmtr,
		listener: opts.Listener,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Execute runs j to a terminal status and returns it. Jobs that are not
// queued are returned untouched. Execute never fails: every problem ends up
// in the job's FailureReason.
func (m *Machine) Execute(ctx context.Context, j *types.Job) *types.Job {
	if j == nil || j.Status != types.JobQueued {
		return j
	}

	log := m.logger.With(zap.String("job_id", j.LocalID), zap.String("company", j.Record.CompanyName))

	m.transition(j, types.JobProcessing)
	log.Debug("job: processing")

	if err := ctx.Err(); err != nil {
		m.fail(j, cancelledReason(ctx))
		log.Info("job: cancelled before start")
		return j
	}

	raw, err := m.stage(ctx, StageGenerate, MsgEmptyReport, func(ctx context.Context) (string, error) {
		return m.gen.Generate(ctx, j.Record)
	})
	if err != nil {
		m.failWith(ctx, j, err, log)
		return j
	}

	if ctx.Err() != nil {
		m.fail(j, cancelledReason(ctx))
		log.Info("job: cancelled between stages")
		return j
	}

	formatted, err := m.stage(ctx, StageFormat, MsgEmptyFormatted, func(ctx context.Context) (string, error) {
		return m.fmtr.Format(ctx, raw)
	})
	if err != nil {
		m.failWith(ctx, j, err, log)
		return j
	}

	j.RawReport = raw
	j.FormattedReport = formatted
	m.transition(j, types.JobCompleted)
	log.Info("job: completed", zap.Int("report_chars", len(formatted)))
	return j
}

// stage runs one collaborator call, turning errors, empty results and panics
// into a *StageFailure.
func (m *Machine) stage(ctx context.Context, stage Stage, emptyMsg string, call func(context.Context) (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = &StageFailure{Stage: stage, Message: "panic", Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = call(ctx)
	if err != nil {
		return "", &StageFailure{Stage: stage, Message: emptyMsg, Cause: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &StageFailure{Stage: stage, Message: emptyMsg}
	}
	return out, nil
}

func (m *Machine) failWith(ctx context.Context, j *types.Job, err error, log *zap.Logger) {
	if ctx.Err() != nil {
		m.fail(j, cancelledReason(ctx))
		log.Info("job: cancelled", zap.Error(err))
		return
	}
	m.fail(j, Reason(err))
	log.Warn("job: failed", zap.Error(err))
}

func (m *Machine) fail(j *types.Job, reason string) {
	j.RawReport = ""
	j.FormattedReport = ""
	j.FailureReason = reason
	m.transition(j, types.JobFailed)
}

func (m *Machine) transition(j *types.Job, to types.JobStatus) {
	from := j.Status
	if !types.CanTransition(from, to) {
		m.logger.Error("job: illegal transition ignored",
			zap.String("job_id", j.LocalID),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return
	}

	now := m.now()
	switch to {
	case types.JobProcessing:
		j.StartedAt = &now
	case types.JobCompleted, types.JobFailed:
		j.FinishedAt = &now
	}
	j.Status = to

	if m.listener != nil {
		m.listener.OnTransition(j.Clone(), from, to)
	}
}

func cancelledReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return CancelledPrefix + cause.Error()
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonathan/prospect-reports/internal/job"
	"github.com/jonathan/prospect-reports/internal/mocks"
	"github.com/jonathan/prospect-reports/internal/types"
)

// fakeWriter fails stage 1 for any company whose name starts with "Fail".
type fakeWriter struct {
	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
	gate      chan struct{}
	formats   atomic.Int32
}

func (f *fakeWriter) Generate(ctx context.Context, rec types.InputRecord) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		cur := f.maxActive.Load()
		if n <= cur || f.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if strings.HasPrefix(rec.CompanyName, "Fail") {
		return "", errors.New("generation service error")
	}
	return "raw report for " + rec.CompanyName, nil
}

func (f *fakeWriter) Format(_ context.Context, raw string) (string, error) {
	f.formats.Add(1)
	return "## " + raw, nil
}

type fakeStore struct {
	mu       sync.Mutex
	outcomes []types.Outcome
	fail     func(o *types.Outcome) error
	seq      int

	// When batch is set, the job's status in the batch is captured at the
	// moment its outcome is appended.
	batch        atomic.Pointer[Batch]
	statusAtCall map[string]types.JobStatus
}

func (s *fakeStore) captureStatus(company string) {
	b := s.batch.Load()
	if b == nil {
		return
	}
	for _, snap := range b.Snapshot().Jobs {
		if snap.Record.CompanyName != company {
			continue
		}
		if j, ok := b.Job(snap.LocalID); ok {
			if s.statusAtCall == nil {
				s.statusAtCall = map[string]types.JobStatus{}
			}
			s.statusAtCall[company] = j.Status
		}
	}
}

func (s *fakeStore) AppendOutcome(_ context.Context, ownerID string, o *types.Outcome) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID != o.OwnerID {
		return "", fmt.Errorf("owner mismatch: %s != %s", ownerID, o.OwnerID)
	}
	s.captureStatus(o.CompanyName)
	s.outcomes = append(s.outcomes, *o)
	if s.fail != nil {
		if err := s.fail(o); err != nil {
			return "", err
		}
	}
	s.seq++
	return fmt.Sprintf("doc-%d", s.seq), nil
}

func (s *fakeStore) saved() []types.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Outcome(nil), s.outcomes...)
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) record(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) all() []ProgressEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ProgressEvent(nil), l.events...)
}

func records(names ...string) []types.InputRecord {
	out := make([]types.InputRecord, 0, len(names))
	for _, name := range names {
		out = append(out, types.InputRecord{
			CompanyName: name,
			WebsiteURL:  "https://" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".example",
			Offer:       "Website redesign",
		})
	}
	return out
}

func waitDone(t *testing.T, b *Batch) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx))
}

func TestRun_IsolatesFailures(t *testing.T) {
	writer := &fakeWriter{}
	store := &fakeStore{}
	orch := NewOrchestrator(writer, writer, store, Options{MaxConcurrency: 2})

	batch, err := orch.Run(context.Background(), "owner-1",
		records("Alpha", "Beta", "Fail Gamma", "Delta", "Epsilon"))
	require.NoError(t, err)

	snap := batch.Snapshot()
	require.Len(t, snap.Jobs, 5)
	for i, j := range snap.Jobs {
		assert.True(t, j.Status.IsTerminal(), "job %d not terminal", i)
		if i == 2 {
			assert.Equal(t, types.JobFailed, j.Status)
			assert.Equal(t, "generation service error", j.FailureReason)
			assert.Empty(t, j.RawReport)
			continue
		}
		assert.Equal(t, types.JobCompleted, j.Status)
		assert.Equal(t, "## raw report for "+j.Record.CompanyName, j.FormattedReport)
	}

	assert.Equal(t, types.Summary{Total: 5, Completed: 4, Failed: 1, Done: true}, snap.Summary)
	assert.Equal(t, int32(4), writer.formats.Load())
}

func TestRun_OneJobPerRecordInOrder(t *testing.T) {
	writer := &fakeWriter{}
	orch := NewOrchestrator(writer, writer, &fakeStore{}, Options{})

	recs := records("A", "B", "C")
	batch, err := orch.Run(context.Background(), "owner-1", recs)
	require.NoError(t, err)

	jobs := batch.Snapshot().Jobs
	require.Len(t, jobs, 3)
	seen := map[string]bool{}
	for i, j := range jobs {
		assert.Equal(t, recs[i], j.Record)
		assert.False(t, seen[j.LocalID], "duplicate local ID")
		seen[j.LocalID] = true
	}
}

func TestRun_PersistsEachTerminalJobOnce(t *testing.T) {
	writer := &fakeWriter{gate: make(chan struct{})}
	store := &fakeStore{}
	orch := NewOrchestrator(writer, writer, store, Options{})

	batch, err := orch.Start(context.Background(), "owner-1", records("A", "Fail B", "C"))
	require.NoError(t, err)
	store.batch.Store(batch)
	close(writer.gate)
	waitDone(t, batch)

	saved := store.saved()
	require.Len(t, saved, 3)
	byCompany := map[string]types.Outcome{}
	for _, o := range saved {
		assert.True(t, o.Status.IsTerminal())
		assert.Empty(t, o.PersistError)
		byCompany[o.CompanyName] = o
	}
	assert.Equal(t, types.JobFailed, byCompany["Fail B"].Status)
	assert.Equal(t, "generation service error", byCompany["Fail B"].FailureReason)
	assert.Empty(t, byCompany["Fail B"].FormattedReport)
	assert.Equal(t, "## raw report for A", byCompany["A"].FormattedReport)

	store.mu.Lock()
	statuses := store.statusAtCall
	store.mu.Unlock()
	require.Len(t, statuses, 3)
	for company, status := range statuses {
		assert.True(t, status.IsTerminal(), "%s was %s when its outcome was saved", company, status)
	}
	assert.Equal(t, types.JobFailed, statuses["Fail B"])
	assert.Equal(t, types.JobCompleted, statuses["A"])

	for _, j := range batch.Snapshot().Jobs {
		assert.NotEqual(t, j.LocalID, j.ID, "document ID not assigned")
		assert.True(t, strings.HasPrefix(j.ID, "doc-"))
	}
}

func TestRun_FallbackWriteOnPersistFailure(t *testing.T) {
	writer := &fakeWriter{}
	store := &fakeStore{fail: func(o *types.Outcome) error {
		if o.CompanyName == "B" && o.PersistError == "" {
			return errors.New("permission denied")
		}
		return nil
	}}
	log := &eventLog{}
	orch := NewOrchestrator(writer, writer, store, Options{OnProgress: log.record})

	batch, err := orch.Run(context.Background(), "owner-1", records("A", "B"))
	require.NoError(t, err)

	var forB []types.Outcome
	for _, o := range store.saved() {
		if o.CompanyName == "B" {
			forB = append(forB, o)
		}
	}
	require.Len(t, forB, 2)
	assert.Empty(t, forB[0].PersistError)
	assert.Equal(t, "permission denied", forB[1].PersistError)
	assert.Equal(t, types.JobCompleted, forB[1].Status)
	assert.Empty(t, forB[1].RawReport)
	assert.Empty(t, forB[1].FormattedReport)

	summary := batch.Summary()
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.PersistFailures)

	var failedEvents int
	for _, ev := range log.all() {
		if ev.Kind == EventPersistFailed {
			failedEvents++
			assert.Equal(t, "B", ev.Job.Record.CompanyName)
			assert.Contains(t, ev.Message, "permission denied")
			assert.Equal(t, types.JobCompleted, ev.Job.Status)
		}
	}
	assert.Equal(t, 1, failedEvents)
}

func TestRun_PersistFailureWithMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	fmtr := mocks.NewMockFormatter(ctrl)
	store := mocks.NewMockStore(ctrl)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("raw", nil)
	fmtr.EXPECT().Format(gomock.Any(), "raw").Return("formatted", nil)
	gomock.InOrder(
		store.EXPECT().AppendOutcome(gomock.Any(), "owner-1", gomock.Any()).
			Return("", errors.New("unavailable")),
		store.EXPECT().AppendOutcome(gomock.Any(), "owner-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, o *types.Outcome) (string, error) {
				assert.Equal(t, "unavailable", o.PersistError)
				return "", errors.New("still unavailable")
			}),
	)

	orch := NewOrchestrator(gen, fmtr, store, Options{})
	batch, err := orch.Run(context.Background(), "owner-1", records("A"))
	require.NoError(t, err)

	j := batch.Snapshot().Jobs[0]
	assert.Equal(t, types.JobCompleted, j.Status)
	assert.Equal(t, j.LocalID, j.ID)
	assert.Equal(t, 1, batch.Summary().PersistFailures)
}

func TestRun_StorePanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	fmtr := mocks.NewMockFormatter(ctrl)
	store := mocks.NewMockStore(ctrl)

	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("nope"))
	store.EXPECT().AppendOutcome(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, *types.Outcome) (string, error) {
			panic("driver bug")
		}).Times(2)

	orch := NewOrchestrator(gen, fmtr, store, Options{})
	batch, err := orch.Run(context.Background(), "owner-1", records("A"))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Summary().PersistFailures)
	assert.Equal(t, types.JobFailed, batch.Snapshot().Jobs[0].Status)
}

func TestRun_RespectsConcurrencyLimit(t *testing.T) {
	writer := &fakeWriter{delay: 20 * time.Millisecond}
	orch := NewOrchestrator(writer, writer, &fakeStore{}, Options{MaxConcurrency: 3})

	_, err := orch.Run(context.Background(), "owner-1", records("A", "B", "C", "D", "E", "F", "G", "H", "I", "J"))
	require.NoError(t, err)
	assert.LessOrEqual(t, writer.maxActive.Load(), int32(3))
	assert.Positive(t, writer.maxActive.Load())
}

func TestRun_UnboundedRunsAllAtOnce(t *testing.T) {
	writer := &fakeWriter{delay: 50 * time.Millisecond}
	orch := NewOrchestrator(writer, writer, &fakeStore{}, Options{MaxConcurrency: 0})

	_, err := orch.Run(context.Background(), "owner-1", records("A", "B", "C", "D"))
	require.NoError(t, err)
	assert.Equal(t, int32(4), writer.maxActive.Load())
}

func TestRun_CancelledBatchStillPersists(t *testing.T) {
	writer := &fakeWriter{delay: time.Minute}
	store := &fakeStore{}
	orch := NewOrchestrator(writer, writer, store, Options{MaxConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	batch, err := orch.Start(ctx, "owner-1", records("A", "B", "C"))
	require.NoError(t, err)
	cancel()
	waitDone(t, batch)

	for _, j := range batch.Snapshot().Jobs {
		assert.Equal(t, types.JobFailed, j.Status)
		assert.True(t, job.IsCancelled(j.FailureReason), j.FailureReason)
	}
	assert.Len(t, store.saved(), 3)
}

func TestStart_ReturnsBeforeJobsFinish(t *testing.T) {
	release := make(chan struct{})
	ctrl := gomock.NewController(t)
	gen := mocks.NewMockGenerator(ctrl)
	fmtr := mocks.NewMockFormatter(ctrl)
	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, types.InputRecord) (string, error) {
			<-release
			return "raw", nil
		})
	fmtr.EXPECT().Format(gomock.Any(), "raw").Return("formatted", nil)

	orch := NewOrchestrator(gen, fmtr, nil, Options{})
	batch, err := orch.Start(context.Background(), "owner-1", records("A"))
	require.NoError(t, err)

	select {
	case <-batch.Done():
		t.Fatal("batch finished before its job was released")
	default:
	}
	assert.False(t, batch.Summary().Done)

	close(release)
	waitDone(t, batch)
	assert.True(t, batch.Summary().Done)
	assert.Equal(t, 1, batch.Summary().Completed)
}

func TestStart_BatchLevelErrors(t *testing.T) {
	writer := &fakeWriter{}
	orch := NewOrchestrator(writer, writer, &fakeStore{}, Options{})

	_, err := orch.Start(context.Background(), "  ", records("A"))
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = orch.Start(context.Background(), "owner-1", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	bad := records("A")
	bad = append(bad, types.InputRecord{CompanyName: "B", WebsiteURL: "not a url", Offer: "x"})
	_, err = orch.Start(context.Background(), "owner-1", bad)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "record 2")
	assert.Zero(t, writer.maxActive.Load())
}

func TestRun_EventsAndDoneSignal(t *testing.T) {
	writer := &fakeWriter{}
	log := &eventLog{}
	orch := NewOrchestrator(writer, writer, &fakeStore{}, Options{OnProgress: log.record})

	_, err := orch.Run(context.Background(), "owner-1", records("A", "Fail B"))
	require.NoError(t, err)

	events := log.all()
	// queued, processing, terminal and persisted per job, plus done.
	require.Len(t, events, 9)
	assert.Equal(t, EventQueued, events[0].Kind)
	assert.Equal(t, EventQueued, events[1].Kind)

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.True(t, last.Summary.Done)
	assert.Equal(t, 1, last.Summary.Completed)
	assert.Equal(t, 1, last.Summary.Failed)
	for _, ev := range events[:len(events)-1] {
		assert.False(t, ev.Summary.Done)
	}
}

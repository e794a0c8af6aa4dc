package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/pipeline"
	"github.com/fgrng/yourmoment/internal/repository"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int32
	block chan struct{}
}

func (r *countingRunner) Run(ctx context.Context, process *domain.Process) (pipeline.Result, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return pipeline.Result{Advanced: 1, Status: pipeline.StatusSuccess}, nil
}

func (r *countingRunner) count() int32 { return atomic.LoadInt32(&r.calls) }

// failingRunner always returns a StatusFailed result, simulating a stage
// exception (the worker threw before any item could be processed).
type failingRunner struct {
	calls int32
}

func (r *failingRunner) Run(ctx context.Context, process *domain.Process) (pipeline.Result, error) {
	atomic.AddInt32(&r.calls, 1)
	return pipeline.Result{Status: pipeline.StatusFailed, Errors: []string{"boom"}}, nil
}

func (r *failingRunner) count() int32 { return atomic.LoadInt32(&r.calls) }

func newTestScheduler(t *testing.T) (*Scheduler, repository.ProcessRepository, *countingRunner, *countingRunner, *countingRunner, *countingRunner) {
	t.Helper()
	processes := repository.NewMemoryProcessRepository()
	discovery := &countingRunner{}
	preparation := &countingRunner{}
	generation := &countingRunner{}
	posting := &countingRunner{}
	s := NewScheduler(processes, discovery, preparation, generation, posting)
	s.TickPeriod = 20 * time.Millisecond
	return s, processes, discovery, preparation, generation, posting
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_DispatchesAllStagesForRunningProcess(t *testing.T) {
	s, processes, discovery, preparation, generation, posting := newTestScheduler(t)
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool {
		return discovery.count() > 0 && preparation.count() > 0 && generation.count() > 0 && posting.count() > 0
	})
}

func TestScheduler_SkipsPostingWhenGenerateOnly(t *testing.T) {
	s, processes, _, _, _, posting := newTestScheduler(t)
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning, GenerateOnly: true})

	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	if posting.count() != 0 {
		t.Errorf("expected Posting never dispatched in generate-only mode, got %d calls", posting.count())
	}
}

func TestScheduler_DoesNotRedispatchStageAlreadyInFlight(t *testing.T) {
	s, processes, discovery, _, _, _ := newTestScheduler(t)
	discovery.block = make(chan struct{})
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return discovery.count() >= 1 })
	time.Sleep(80 * time.Millisecond)
	if discovery.count() != 1 {
		t.Errorf("expected discovery dispatched once while still in flight, got %d", discovery.count())
	}
	close(discovery.block)
}

func TestScheduler_StopsExpiredProcess(t *testing.T) {
	s, processes, _, _, _, _ := newTestScheduler(t)
	past := time.Now().Add(-time.Minute)
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning, ExpiresAt: &past})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool {
		p, err := processes.Get(context.Background(), "proc-1")
		return err == nil && p.Status == domain.ProcessStopped
	})

	p, _ := processes.Get(context.Background(), "proc-1")
	if p.StopReason != "timeout" {
		t.Errorf("StopReason = %q, want timeout", p.StopReason)
	}
	if p.StoppedAt == nil {
		t.Error("expected StoppedAt to be set")
	}
}

func TestScheduler_RetriesFailingStageWithBackoff(t *testing.T) {
	s, processes, _, _, _, _ := newTestScheduler(t)
	discovery := &failingRunner{}
	s.Discovery = discovery
	s.StageBackoff = BackoffPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond, BackoffFactor: 2, MaxRetries: 5}
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return discovery.count() >= 1 })
	// A second attempt should eventually happen once the backoff elapses,
	// but never on every single tick (the scheduler ticks every 20ms here).
	time.Sleep(15 * time.Millisecond)
	firstWindowCalls := discovery.count()

	waitFor(t, func() bool { return discovery.count() > firstWindowCalls })

	p, err := processes.Get(context.Background(), "proc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Status != domain.ProcessRunning {
		t.Fatalf("expected process still running while retries remain, got %v", p.Status)
	}
}

func TestScheduler_FailsProcessAfterMaxRetries(t *testing.T) {
	s, processes, _, _, _, _ := newTestScheduler(t)
	discovery := &failingRunner{}
	s.Discovery = discovery
	s.StageBackoff = BackoffPolicy{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 1, MaxRetries: 2}
	processes.Create(context.Background(), &domain.Process{ID: "proc-1", Status: domain.ProcessRunning})

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool {
		p, err := processes.Get(context.Background(), "proc-1")
		return err == nil && p.Status == domain.ProcessFailed
	})

	p, _ := processes.Get(context.Background(), "proc-1")
	if p.StopReason != "stage_error" {
		t.Errorf("StopReason = %q, want stage_error", p.StopReason)
	}
	if p.ErrorMessage == "" {
		t.Error("expected ErrorMessage to be set")
	}
	if p.StoppedAt == nil {
		t.Error("expected StoppedAt to be set")
	}
}

// Package scheduler drives the four-stage monitoring pipeline on a fixed
// tick, dispatching stage workers per running process and enforcing each
// process's maximum duration.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/pipeline"
	"github.com/fgrng/yourmoment/internal/repository"
)

const stageDiscovery = "discovery"
const stagePreparation = "preparation"
const stageGeneration = "generation"
const stagePosting = "posting"

// stageRunner is the common shape of all four stage workers.
type stageRunner interface {
	Run(ctx context.Context, process *domain.Process) (pipeline.Result, error)
}

// Scheduler is the periodic orchestrator (C5). It owns no business logic of
// its own beyond sequencing: each tick it loads running processes and, for
// every (process, stage) pair not already in flight, spawns a worker.
type Scheduler struct {
	Processes   repository.ProcessRepository
	Discovery   stageRunner
	Preparation stageRunner
	Generation  stageRunner
	Posting     stageRunner

	TickPeriod   time.Duration
	GenLimiter   *ConcurrencyLimiter
	PostBackoff  BackoffPolicy
	StageBackoff BackoffPolicy

	mu         sync.Mutex
	inFlight   map[string]context.CancelFunc
	attempts   map[string]int
	retryAfter map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires a Scheduler with sensible defaults; override TickPeriod,
// GenLimiter or backoff policies after construction if needed.
func NewScheduler(processes repository.ProcessRepository, discovery, preparation, generation, posting stageRunner) *Scheduler {
	return &Scheduler{
		Processes:    processes,
		Discovery:    discovery,
		Preparation:  preparation,
		Generation:   generation,
		Posting:      posting,
		TickPeriod:   60 * time.Second,
		GenLimiter:   NewConcurrencyLimiter(5),
		PostBackoff:  defaultPostingBackoff(),
		StageBackoff: defaultStageBackoff(),
		inFlight:     make(map[string]context.CancelFunc),
		attempts:     make(map[string]int),
		retryAfter:   make(map[string]time.Time),
	}
}

// backoffFor returns the retry policy governing a given stage: Posting
// gets its own slower profile, the other three share the faster one.
func (s *Scheduler) backoffFor(stage string) BackoffPolicy {
	if stage == stagePosting {
		return s.PostBackoff
	}
	return s.StageBackoff
}

// Start launches the periodic tick loop in a goroutine. Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.tickPeriod())
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				s.tick(tickCtx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for the in-progress tick, if any, to
// return control (it does not wait for in-flight stage workers to finish —
// those are tracked independently and revoked on process timeout or
// failure; their contexts derive from the tick loop's, so they are
// cancelled here as well).
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) tickPeriod() time.Duration {
	if s.TickPeriod <= 0 {
		return 60 * time.Second
	}
	return s.TickPeriod
}

// tick loads every running process, enforces deadlines, and dispatches the
// next stage worker for each (process, stage) pair not already in flight.
func (s *Scheduler) tick(ctx context.Context) {
	processes, err := s.Processes.ListRunning(ctx)
	if err != nil {
		slog.Error("scheduler: list running processes", "err", err)
		return
	}

	for _, process := range processes {
		if s.enforceDeadline(ctx, process) {
			continue
		}
		s.dispatchStage(ctx, process, stageDiscovery, s.Discovery)
		s.dispatchStage(ctx, process, stagePreparation, s.Preparation)
		s.dispatchStage(ctx, process, stageGeneration, s.Generation)
		if !process.GenerateOnly {
			s.dispatchStage(ctx, process, stagePosting, s.Posting)
		}
	}
}

// failProcess marks a process failed after its stage retries are
// exhausted: status=failed, stop_reason=stage_error, error_message set,
// every in-flight task handle revoked and cleared.
func (s *Scheduler) failProcess(ctx context.Context, process *domain.Process, stage string, cause error) {
	s.revokeAll(process.ID)

	now := time.Now()
	process.Status = domain.ProcessFailed
	process.StoppedAt = &now
	process.StopReason = "stage_error"
	process.ErrorMessage = fmt.Sprintf("%s: %v", stage, cause)
	process.DiscoveryTask = ""
	process.PreparationTask = ""
	process.GenerationTask = ""
	process.PostingTask = ""

	if err := s.Processes.Update(ctx, process); err != nil {
		slog.Error("scheduler: mark process failed", "process", process.ID, "stage", stage, "err", err)
	}

	s.mu.Lock()
	for _, st := range []string{stageDiscovery, stagePreparation, stageGeneration, stagePosting} {
		key := inFlightKey(process.ID, st)
		delete(s.attempts, key)
		delete(s.retryAfter, key)
	}
	s.mu.Unlock()
}

// enforceDeadline stops a process whose wall-clock time has exceeded its
// configured maximum duration. Returns true if the process was stopped.
func (s *Scheduler) enforceDeadline(ctx context.Context, process *domain.Process) bool {
	if process.ExpiresAt == nil || time.Now().Before(*process.ExpiresAt) {
		return false
	}

	s.revokeAll(process.ID)

	now := time.Now()
	process.Status = domain.ProcessStopped
	process.StoppedAt = &now
	process.StopReason = "timeout"
	process.DiscoveryTask = ""
	process.PreparationTask = ""
	process.GenerationTask = ""
	process.PostingTask = ""

	if err := s.Processes.Update(ctx, process); err != nil {
		slog.Error("scheduler: stop timed-out process", "process", process.ID, "err", err)
	}
	return true
}

// dispatchStage spawns a worker for (process, stage) unless one is already
// in flight, tracking it by a cancel func keyed on the pair.
func (s *Scheduler) dispatchStage(ctx context.Context, process *domain.Process, stage string, worker stageRunner) {
	key := inFlightKey(process.ID, stage)

	s.mu.Lock()
	if _, running := s.inFlight[key]; running {
		s.mu.Unlock()
		return
	}
	if until, waiting := s.retryAfter[key]; waiting && time.Now().Before(until) {
		s.mu.Unlock()
		return
	}
	stageCtx, cancel := context.WithCancel(ctx)
	s.inFlight[key] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
		}()

		if stage == stageGeneration {
			if err := s.GenLimiter.Acquire(stageCtx, process.ID); err != nil {
				return
			}
			defer s.GenLimiter.Release(process.ID)
		}

		result, err := worker.Run(stageCtx, process)
		if err == nil && result.Status != pipeline.StatusFailed {
			s.mu.Lock()
			delete(s.attempts, key)
			delete(s.retryAfter, key)
			s.mu.Unlock()
			return
		}

		cause := err
		if cause == nil {
			cause = fmt.Errorf("stage failed: %v", result.Errors)
		}
		slog.Error("scheduler: stage worker error", "process", process.ID, "stage", stage, "err", cause)
		s.retryStage(ctx, process, stage, key, cause)
	}()
}

// retryStage records a stage-level exception: schedules a backoff-delayed
// retry until the stage's configured max is exhausted, then fails the
// process with stop_reason=stage_error.
func (s *Scheduler) retryStage(ctx context.Context, process *domain.Process, stage, key string, cause error) {
	policy := s.backoffFor(stage)

	s.mu.Lock()
	s.attempts[key]++
	attempt := s.attempts[key]
	if attempt > policy.MaxRetries {
		delete(s.attempts, key)
		delete(s.retryAfter, key)
		s.mu.Unlock()
		s.failProcess(ctx, process, stage, cause)
		return
	}
	s.retryAfter[key] = time.Now().Add(policy.delay(attempt - 1))
	s.mu.Unlock()
}

func (s *Scheduler) revokeAll(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stage := range []string{stageDiscovery, stagePreparation, stageGeneration, stagePosting} {
		key := inFlightKey(processID, stage)
		if cancel, ok := s.inFlight[key]; ok {
			cancel()
			delete(s.inFlight, key)
		}
	}
}

func inFlightKey(processID, stage string) string {
	return fmt.Sprintf("%s:%s", processID, stage)
}

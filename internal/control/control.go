// Package control is the minimal service layer (C8) that starts, stops
// and inspects monitoring processes. It is not a full REST API — just
// enough surface to drive the pipeline end-to-end from cmd/yourmoment
// and from tests.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/pipeline"
	"github.com/fgrng/yourmoment/internal/repository"
)

// errValidation aliases the pipeline's validation sentinel so control-layer
// rejections are distinguishable the same way stage-worker ones are.
var errValidation = pipeline.ErrValidation

// stageRunner is the shape common to the Discovery and Posting workers,
// the two that the control surface dispatches immediately rather than
// leaving for the scheduler's next tick.
type stageRunner interface {
	Run(ctx context.Context, process *domain.Process) (pipeline.Result, error)
}

// Service validates and mutates processes, then lets the scheduler pick
// up the resulting state on its next tick. Discovery and TriggerPostOnly
// are also run immediately, one-shot, since a user starting a process or
// asking to post expects that to happen right away rather than waiting
// for the next tick.
type Service struct {
	Processes repository.ProcessRepository
	Logins    repository.UpstreamLoginRepository
	Templates repository.PromptTemplateRepository
	Providers repository.LLMProviderConfigRepository
	Discovery stageRunner
	Posting   stageRunner
}

func NewService(processes repository.ProcessRepository, logins repository.UpstreamLoginRepository, templates repository.PromptTemplateRepository, providers repository.LLMProviderConfigRepository) *Service {
	return &Service{Processes: processes, Logins: logins, Templates: templates, Providers: providers}
}

// StartProcess validates the process's prerequisites and flips it to
// running. Validation rejects a process that the stage workers would
// immediately fail on: it requires at least one login, at least one
// prompt template, a resolvable LLM provider config, and a duration
// within [1, 1440] minutes (or the configured cap, if lower).
func (s *Service) StartProcess(ctx context.Context, processID string, maxDurationCap int) (*domain.Process, error) {
	process, err := s.Processes.Get(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("loading process: %w", err)
	}

	if err := s.validate(ctx, process, maxDurationCap); err != nil {
		return nil, err
	}

	now := time.Now()
	expires := now.Add(time.Duration(process.MaxDurationMinutes) * time.Minute)
	process.Status = domain.ProcessRunning
	process.StartedAt = &now
	process.ExpiresAt = &expires
	process.StoppedAt = nil
	process.StopReason = ""
	process.ErrorMessage = ""

	if err := s.Processes.Update(ctx, process); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	if s.Discovery != nil {
		go func() {
			if _, err := s.Discovery.Run(context.Background(), process); err != nil {
				slog.Error("control: initial discovery failed", "process", process.ID, "err", err)
			}
		}()
	}
	return process, nil
}

// TriggerPostOnly runs the Posting worker once, immediately, for items
// currently in generated — used when a user decides to post the comments
// of a previously generate-only process.
func (s *Service) TriggerPostOnly(ctx context.Context, processID string) (pipeline.Result, error) {
	process, err := s.Processes.Get(ctx, processID)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("loading process: %w", err)
	}
	if s.Posting == nil {
		return pipeline.Result{}, fmt.Errorf("posting worker not configured")
	}

	postOnly := *process
	postOnly.GenerateOnly = false
	return s.Posting.Run(ctx, &postOnly)
}

// StopProcess halts a process. Idempotent: stopping an already-stopped
// process is a no-op, not an error. It clears the stored stage task
// fields but does not cancel stage workers the scheduler has already
// started; those run until they return, and the scheduler dispatches no
// new ones once the process is no longer running.
func (s *Service) StopProcess(ctx context.Context, processID, reason string) (*domain.Process, error) {
	process, err := s.Processes.Get(ctx, processID)
	if err != nil {
		return nil, fmt.Errorf("loading process: %w", err)
	}

	if process.Status != domain.ProcessRunning {
		return process, nil
	}

	now := time.Now()
	process.Status = domain.ProcessStopped
	process.StoppedAt = &now
	process.StopReason = reason
	process.DiscoveryTask = ""
	process.PreparationTask = ""
	process.GenerationTask = ""
	process.PostingTask = ""

	if err := s.Processes.Update(ctx, process); err != nil {
		return nil, fmt.Errorf("stopping process: %w", err)
	}
	return process, nil
}

// validate enforces the same preconditions spec.md requires of a
// runnable process.
func (s *Service) validate(ctx context.Context, process *domain.Process, maxDurationCap int) error {
	if len(process.LoginIDs) == 0 {
		return fmt.Errorf("process %q has no upstream logins configured: %w", process.ID, errValidation)
	}
	if len(process.PromptTemplateIDs) == 0 {
		return fmt.Errorf("process %q has no prompt templates configured: %w", process.ID, errValidation)
	}
	if process.LLMProviderConfigID == "" {
		return fmt.Errorf("process %q has no LLM provider configured: %w", process.ID, errValidation)
	}
	if _, err := s.Providers.Get(ctx, process.LLMProviderConfigID); err != nil {
		return fmt.Errorf("process %q references unknown LLM provider config: %w", process.ID, errValidation)
	}
	for _, loginID := range process.LoginIDs {
		if _, err := s.Logins.Get(ctx, loginID); err != nil {
			return fmt.Errorf("process %q references unknown login %q: %w", process.ID, loginID, errValidation)
		}
	}
	for _, templateID := range process.PromptTemplateIDs {
		if _, err := s.Templates.Get(ctx, templateID); err != nil {
			return fmt.Errorf("process %q references unknown prompt template %q: %w", process.ID, templateID, errValidation)
		}
	}

	cap := maxDurationCap
	if cap <= 0 || cap > 1440 {
		cap = 1440
	}
	if process.MaxDurationMinutes < 1 || process.MaxDurationMinutes > cap {
		return fmt.Errorf("process %q has an out-of-range max_duration_minutes (%d, allowed 1-%d): %w", process.ID, process.MaxDurationMinutes, cap, errValidation)
	}
	return nil
}

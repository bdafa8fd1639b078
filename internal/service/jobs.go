// Package service coordinates trigger evaluation, workspace
// provisioning, and pipeline execution for lint jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/executor"
	"github.com/example/lintci/internal/observability"
	"github.com/example/lintci/internal/provision"
	"github.com/example/lintci/internal/storage"
	"github.com/example/lintci/internal/trigger"
	"github.com/example/lintci/internal/workflow"
	"github.com/example/lintci/pkg/id"
)

// DefaultStepTimeout bounds a single step when the caller sets none.
const DefaultStepTimeout = 10 * time.Minute

// Options configures a JobService.
type Options struct {
	// Executor runs step commands. Defaults to executor.NewShell().
	Executor executor.Executor

	// Workspaces provisions per-job scratch directories.
	// Defaults to a Manager rooted in the system temp directory.
	Workspaces *provision.Manager

	// CheckoutDir is the source checkout steps run against.
	// Defaults to the current directory.
	CheckoutDir string

	// StepTimeout bounds each step. Defaults to DefaultStepTimeout.
	StepTimeout time.Duration

	// IDGenerator generates job and event IDs. Defaults to id.Generate.
	IDGenerator func() string

	// Metrics is optional.
	Metrics *observability.Metrics
}

// JobService owns the job lifecycle: event intake, trigger evaluation,
// pipeline execution, and queries.
type JobService struct {
	storage     storage.Storage
	def         *workflow.Definition
	evaluator   *trigger.Evaluator
	executor    executor.Executor
	workspaces  *provision.Manager
	checkoutDir string
	stepTimeout time.Duration
	idGenerator func() string
	metrics     *observability.Metrics
}

// New creates a JobService for one workflow definition.
func New(store storage.Storage, def *workflow.Definition, opts Options) *JobService {
	if opts.Executor == nil {
		opts.Executor = executor.NewShell()
	}
	if opts.Workspaces == nil {
		opts.Workspaces = provision.NewManager("")
	}
	if opts.CheckoutDir == "" {
		opts.CheckoutDir = "."
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = DefaultStepTimeout
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = id.Generate
	}

	return &JobService{
		storage:     store,
		def:         def,
		evaluator:   trigger.NewEvaluator(def),
		executor:    opts.Executor,
		workspaces:  opts.Workspaces,
		checkoutDir: opts.CheckoutDir,
		stepTimeout: opts.StepTimeout,
		idGenerator: opts.IDGenerator,
		metrics:     opts.Metrics,
	}
}

// Workflow returns the definition this service runs.
func (s *JobService) Workflow() *workflow.Definition {
	return s.def
}

// SubmitEvent validates and persists an event, evaluates the workflow
// triggers against it, and creates the resulting job. A suppressed
// trigger produces a SKIPPED job carrying the suppression reason.
func (s *JobService) SubmitEvent(ctx context.Context, event *domain.Event) (*domain.Job, error) {
	if event.ID == "" {
		event.ID = s.idGenerator()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	decision := s.evaluator.Evaluate(event)
	job := domain.NewJob(s.idGenerator(), event.ID, s.def.Name)
	if !decision.Run {
		if err := job.Skip(decision.Reason); err != nil {
			return nil, err
		}
	}

	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.Events().Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}
	if err := uow.Jobs().Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	if decision.Run {
		for i, step := range s.def.Steps {
			run := domain.NewStepRun(job.ID, i, step.Name, step.Run, step.Class())
			run.ContinueOnError = step.ContinueOnError
			if err := uow.Steps().Create(ctx, run); err != nil {
				return nil, fmt.Errorf("failed to store step %d: %w", i, err)
			}
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.metrics.EventReceived(string(event.Kind))
	if !decision.Run {
		s.metrics.JobSkipped()
		log.Printf("[jobs] Event %s suppressed: %s", event.ID, decision.Reason)
	} else {
		log.Printf("[jobs] Event %s created job %s (%s)", event.ID, job.ID, decision.Reason)
	}

	return job, nil
}

// RunJob executes a pending job's pipeline to completion. Steps run
// strictly in order; the first fatal failure halts the remaining
// sequence unless the failing step is marked continue-on-error, and
// diagnostic step failures never affect the job outcome.
func (s *JobService) RunJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, steps, err := s.claimJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.metrics.JobStarted()
	start := time.Now()
	log.Printf("[jobs] Running job %s (%d steps)", job.ID, len(steps))

	ws, err := s.workspaces.Provision(ctx, job.ID, s.checkoutDir, s.def.Env.PythonVersion)
	if err != nil {
		// Provisioning failure is a job failure, not a crash.
		return s.finishJob(ctx, job, start, fmt.Sprintf("failed to provision workspace: %v", err))
	}
	defer func() {
		if err := s.workspaces.Cleanup(context.WithoutCancel(ctx), ws); err != nil {
			log.Printf("[jobs] Workspace cleanup for job %s failed: %v", job.ID, err)
		}
	}()

	var failureMsg string
	halted := false

	for _, step := range steps {
		if halted {
			s.skipStep(ctx, step, "skipped: earlier fatal step failed")
			continue
		}

		if skip, reason := s.shouldSkip(step); skip {
			s.skipStep(ctx, step, reason)
			continue
		}

		result, runErr := s.runStep(ctx, step, ws)
		if runErr != nil {
			// The command could not be started at all.
			failureMsg = fmt.Sprintf("step %q could not start: %v", step.Name, runErr)
			halted = true
			continue
		}

		if result.ExitCode == 0 || !step.Fatal() {
			continue
		}

		// First fatal failure decides the job outcome.
		if failureMsg == "" {
			failureMsg = fmt.Sprintf("step %q exited %d", step.Name, result.ExitCode)
		}
		if !step.ContinueOnError {
			halted = true
		}
	}

	return s.finishJob(ctx, job, start, failureMsg)
}

// RunNext runs the oldest pending job, if any. It reports whether a job
// was run.
func (s *JobService) RunNext(ctx context.Context) (bool, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return false, err
	}
	job, err := uow.Jobs().NextPending(ctx)
	uow.Rollback()
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.RunJob(ctx, job.ID); err != nil {
		return true, err
	}
	return true, nil
}

// GetJob returns a job and its step runs.
func (s *JobService) GetJob(ctx context.Context, jobID string) (*domain.Job, []*domain.StepRun, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()

	job, err := uow.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	steps, err := uow.Steps().ListByJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, steps, nil
}

// ListJobs lists jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, opts storage.ListOptions) ([]*domain.Job, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Jobs().List(ctx, opts)
}

// GetEvent returns a stored event.
func (s *JobService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()
	return uow.Events().Get(ctx, eventID)
}

// claimJob transitions a PENDING job to RUNNING. The version guard in
// the update rejects a second worker claiming the same job.
func (s *JobService) claimJob(ctx context.Context, jobID string) (*domain.Job, []*domain.StepRun, error) {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer uow.Rollback()

	job, err := uow.Jobs().Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if err := job.SetState(domain.JobStateRunning); err != nil {
		return nil, nil, err
	}
	if err := uow.Jobs().Update(ctx, job); err != nil {
		return nil, nil, err
	}

	steps, err := uow.Steps().ListByJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, err
	}
	return job, steps, nil
}

// shouldSkip checks a step's file-existence condition against the checkout.
func (s *JobService) shouldSkip(step *domain.StepRun) (bool, string) {
	if step.Index >= len(s.def.Steps) {
		return false, ""
	}
	condition := s.def.Steps[step.Index].IfFileExists
	if condition == "" {
		return false, ""
	}
	if _, err := os.Stat(filepath.Join(s.checkoutDir, condition)); err != nil {
		return true, fmt.Sprintf("skipped: %s not present", condition)
	}
	return false, ""
}

// runStep executes one step and persists its result.
func (s *JobService) runStep(ctx context.Context, step *domain.StepRun, ws *provision.Workspace) (*executor.Result, error) {
	if err := s.persistStepState(ctx, step, domain.StepStateRunning, ""); err != nil {
		return nil, err
	}

	result, err := s.executor.Run(ctx, executor.Config{
		Command:     step.Command,
		Dir:         ws.CheckoutDir,
		Environment: ws.Environment,
		Timeout:     s.stepTimeout,
	})
	if err != nil {
		s.persistStepState(ctx, step, domain.StepStateFailed, err.Error())
		return nil, err
	}

	step.ExitCode = result.ExitCode
	step.Log = result.Log
	state := domain.StepStateSucceeded
	if result.ExitCode != 0 {
		state = domain.StepStateFailed
	}
	if err := s.persistStepState(ctx, step, state, ""); err != nil {
		return nil, err
	}

	s.metrics.ObserveStep(step.Name, result.Duration)
	log.Printf("[jobs] Job %s step %d (%s) exited %d in %v",
		step.JobID, step.Index, step.Name, result.ExitCode, result.Duration)
	return result, nil
}

func (s *JobService) skipStep(ctx context.Context, step *domain.StepRun, reason string) {
	if err := s.persistStepState(ctx, step, domain.StepStateSkipped, reason); err != nil {
		log.Printf("[jobs] Failed to mark step %d of job %s skipped: %v", step.Index, step.JobID, err)
	}
}

func (s *JobService) persistStepState(ctx context.Context, step *domain.StepRun, state domain.StepState, note string) error {
	if err := step.SetState(state); err != nil {
		return err
	}
	if note != "" {
		step.Log = note
	}

	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.Steps().Update(ctx, step); err != nil {
		return err
	}
	return uow.Commit()
}

// finishJob records the terminal job state.
func (s *JobService) finishJob(ctx context.Context, job *domain.Job, start time.Time, failureMsg string) (*domain.Job, error) {
	var stateErr error
	if failureMsg != "" {
		stateErr = job.Fail(failureMsg)
	} else {
		stateErr = job.SetState(domain.JobStateSucceeded)
	}
	if stateErr != nil {
		return nil, stateErr
	}

	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.Jobs().Update(ctx, job); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	outcome := "succeeded"
	if failureMsg != "" {
		outcome = "failed"
	}
	s.metrics.JobFinished(outcome, time.Since(start))
	log.Printf("[jobs] Job %s finished: %s", job.ID, job.State)
	return job, nil
}

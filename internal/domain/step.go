package domain

import (
	"fmt"
	"time"
)

// StepClass separates steps whose exit status decides the job outcome
// from purely informational ones.
type StepClass string

const (
	// StepClassFatal marks a step whose non-zero exit fails the job.
	StepClassFatal StepClass = "fatal"

	// StepClassDiagnostic marks a step whose output is informational
	// only; its exit status never affects the job outcome.
	StepClassDiagnostic StepClass = "diagnostic"
)

// StepState describes the current state of a StepRun.
type StepState int

const (
	StepStateUnknown   StepState = 0
	StepStatePending   StepState = 10
	StepStateRunning   StepState = 20
	StepStateSucceeded StepState = 30
	StepStateFailed    StepState = 40
	StepStateSkipped   StepState = 50 // earlier fatal failure, or missing conditional file
)

func (s StepState) String() string {
	switch s {
	case StepStatePending:
		return "PENDING"
	case StepStateRunning:
		return "RUNNING"
	case StepStateSucceeded:
		return "SUCCEEDED"
	case StepStateFailed:
		return "FAILED"
	case StepStateSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// ValidStepStateTransition checks if a state transition is valid.
// Valid transitions: PENDING -> RUNNING -> {SUCCEEDED, FAILED},
// and PENDING -> SKIPPED.
func ValidStepStateTransition(from, to StepState) bool {
	switch from {
	case StepStatePending:
		return to == StepStateRunning || to == StepStateSkipped
	case StepStateRunning:
		return to == StepStateSucceeded || to == StepStateFailed
	default:
		return from == StepStateUnknown && to == StepStatePending
	}
}

// StepRun is one executed (or skipped) step of a job's pipeline.
type StepRun struct {
	JobID           string
	Index           int
	Name            string
	Command         string
	Class           StepClass
	ContinueOnError bool
	State           StepState
	ExitCode        int
	Log             string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// NewStepRun creates a new StepRun in PENDING state.
func NewStepRun(jobID string, index int, name, command string, class StepClass) *StepRun {
	now := time.Now().UTC()
	return &StepRun{
		JobID:     jobID,
		Index:     index,
		Name:      name,
		Command:   command,
		Class:     class,
		State:     StepStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetState transitions the step to a new state.
func (s *StepRun) SetState(newState StepState) error {
	if !ValidStepStateTransition(s.State, newState) {
		return fmt.Errorf("%w: cannot transition step %d from %s to %s",
			ErrInvalidState, s.Index, s.State, newState)
	}
	now := time.Now().UTC()
	s.State = newState
	s.UpdatedAt = now
	switch newState {
	case StepStateRunning:
		s.StartedAt = &now
	case StepStateSucceeded, StepStateFailed, StepStateSkipped:
		s.FinishedAt = &now
	}
	return nil
}

// Fatal reports whether a non-zero exit of this step fails the job.
func (s *StepRun) Fatal() bool {
	return s.Class == StepClassFatal
}

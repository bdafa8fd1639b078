package domain

import (
	"fmt"
	"time"
)

// JobState describes the current state of a Job.
type JobState int

const (
	JobStateUnknown   JobState = 0
	JobStatePending   JobState = 10 // Job created, waiting for a worker
	JobStateRunning   JobState = 20 // Pipeline is executing
	JobStateSucceeded JobState = 30 // Every fatal step exited zero
	JobStateFailed    JobState = 40 // At least one fatal step exited non-zero
	JobStateSkipped   JobState = 50 // Trigger filters suppressed the run
)

func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "PENDING"
	case JobStateRunning:
		return "RUNNING"
	case JobStateSucceeded:
		return "SUCCEEDED"
	case JobStateFailed:
		return "FAILED"
	case JobStateSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateSkipped
}

// ValidJobStateTransition checks if a state transition is valid.
// Valid transitions: PENDING -> RUNNING -> {SUCCEEDED, FAILED},
// and PENDING -> SKIPPED when the trigger suppresses the run.
func ValidJobStateTransition(from, to JobState) bool {
	switch from {
	case JobStatePending:
		return to == JobStateRunning || to == JobStateSkipped
	case JobStateRunning:
		return to == JobStateSucceeded || to == JobStateFailed
	default:
		return from == JobStateUnknown && to == JobStatePending
	}
}

// Failure records why a job or step failed.
type Failure struct {
	Message    string
	OccurredAt time.Time
}

// Job is one complete run of the provisioning-and-analysis sequence,
// created for a single event.
type Job struct {
	ID         string
	EventID    string
	Workflow   string
	State      JobState
	Reason     string // populated for SKIPPED jobs
	Failure    *Failure
	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Version    int64
}

// NewJob creates a new Job in PENDING state.
func NewJob(id, eventID, workflow string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		EventID:   eventID,
		Workflow:  workflow,
		State:     JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// SetState transitions the job to a new state.
func (j *Job) SetState(newState JobState) error {
	if !ValidJobStateTransition(j.State, newState) {
		return fmt.Errorf("%w: cannot transition job from %s to %s",
			ErrInvalidState, j.State, newState)
	}
	now := time.Now().UTC()
	j.State = newState
	j.UpdatedAt = now
	switch {
	case newState == JobStateRunning:
		j.StartedAt = &now
	case newState.Terminal():
		j.FinishedAt = &now
	}
	return nil
}

// Skip marks the job as suppressed by trigger evaluation.
func (j *Job) Skip(reason string) error {
	if err := j.SetState(JobStateSkipped); err != nil {
		return err
	}
	j.Reason = reason
	return nil
}

// Fail marks the job as failed with the given message.
func (j *Job) Fail(message string) error {
	if err := j.SetState(JobStateFailed); err != nil {
		return err
	}
	j.Failure = &Failure{
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}
	return nil
}

package web

import (
	"strings"
	"time"

	"github.com/example/lintci/internal/domain"
)

// SubmitEventRequest is the body of POST /api/events
type SubmitEventRequest struct {
	Kind         string         `json:"kind"`
	Repository   string         `json:"repository"`
	Ref          string         `json:"ref,omitempty"`
	ChangedFiles []string       `json:"changedFiles,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// JobResponse is a job as returned by the API
type JobResponse struct {
	ID         string         `json:"id"`
	EventID    string         `json:"eventId"`
	Workflow   string         `json:"workflow"`
	State      string         `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Failure    *FailureInfo   `json:"failure,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Steps      []StepResponse `json:"steps,omitempty"`
}

// StepResponse is one step run within a job
type StepResponse struct {
	Index           int        `json:"index"`
	Name            string     `json:"name"`
	Command         string     `json:"command"`
	Class           string     `json:"class"`
	ContinueOnError bool       `json:"continueOnError,omitempty"`
	State           string     `json:"state"`
	ExitCode        int        `json:"exitCode"`
	Log             string     `json:"log,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// FailureInfo records why a job failed
type FailureInfo struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ListJobsResponse is the response for GET /api/jobs
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// convertJob converts a domain.Job (and optionally its steps) to a JobResponse
func convertJob(job *domain.Job, steps []*domain.StepRun) JobResponse {
	resp := JobResponse{
		ID:         job.ID,
		EventID:    job.EventID,
		Workflow:   job.Workflow,
		State:      job.State.String(),
		Reason:     job.Reason,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Failure != nil {
		resp.Failure = &FailureInfo{
			Message:    job.Failure.Message,
			OccurredAt: job.Failure.OccurredAt,
		}
	}
	for _, step := range steps {
		resp.Steps = append(resp.Steps, convertStep(step))
	}
	return resp
}

// convertStep converts a domain.StepRun to a StepResponse
func convertStep(step *domain.StepRun) StepResponse {
	return StepResponse{
		Index:           step.Index,
		Name:            step.Name,
		Command:         step.Command,
		Class:           string(step.Class),
		ContinueOnError: step.ContinueOnError,
		State:           step.State.String(),
		ExitCode:        step.ExitCode,
		Log:             step.Log,
		StartedAt:       step.StartedAt,
		FinishedAt:      step.FinishedAt,
	}
}

// parseJobState maps a query parameter to a JobState. Accepts the same
// strings the API emits, case-insensitively.
func parseJobState(s string) (domain.JobState, bool) {
	for _, state := range []domain.JobState{
		domain.JobStatePending,
		domain.JobStateRunning,
		domain.JobStateSucceeded,
		domain.JobStateFailed,
		domain.JobStateSkipped,
	} {
		if strings.EqualFold(s, state.String()) {
			return state, true
		}
	}
	return domain.JobStateUnknown, false
}

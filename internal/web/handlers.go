package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/service"
	"github.com/example/lintci/internal/storage"
)

// Handlers contains HTTP handlers for the web API
type Handlers struct {
	jobs *service.JobService
}

// NewHandlers creates new API handlers
func NewHandlers(jobs *service.JobService) *Handlers {
	return &Handlers{jobs: jobs}
}

// SubmitEvent handles POST /api/events. The event is persisted and the
// workflow triggers evaluated; the resulting job (PENDING or SKIPPED) is
// returned with 202.
func (h *Handlers) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event := domain.NewEvent("", domain.EventKind(req.Kind), req.Repository)
	event.Ref = req.Ref
	event.ChangedFiles = req.ChangedFiles
	for k, v := range req.Payload {
		event.Payload[k] = v
	}

	job, err := h.jobs.SubmitEvent(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to submit event: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(convertJob(job, nil))
}

// ListJobs handles GET /api/jobs, newest first. An optional ?state=
// parameter filters by job state.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var opts storage.ListOptions
	if s := r.URL.Query().Get("state"); s != "" {
		state, ok := parseJobState(s)
		if !ok {
			http.Error(w, fmt.Sprintf("Unknown job state %q", s), http.StatusBadRequest)
			return
		}
		opts.JobStates = []domain.JobState{state}
	}

	jobs, err := h.jobs.ListJobs(ctx, opts)
	if err != nil {
		http.Error(w, "Failed to list jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, convertJob(job, nil))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetJob handles GET /api/jobs/:id, including the job's step runs.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	job, steps, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(convertJob(job, steps))
}

// GetJobLog handles GET /api/jobs/:id/log. The combined output of every
// executed step is returned as plain text, in step order.
func (h *Handlers) GetJobLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[1] != "log" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	job, steps, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "=== Job %s (%s) ===\n", job.ID, job.State)
	if job.Reason != "" {
		fmt.Fprintf(w, "%s\n", job.Reason)
	}
	for _, step := range steps {
		fmt.Fprintf(w, "\n--- Step %d: %s [%s] ---\n", step.Index, step.Name, step.State)
		if step.Log != "" {
			fmt.Fprint(w, step.Log)
			if !strings.HasSuffix(step.Log, "\n") {
				fmt.Fprintln(w)
			}
		}
	}
	if job.Failure != nil {
		fmt.Fprintf(w, "\n%s\n", job.Failure.Message)
	}
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"workflow": h.jobs.Workflow().Name,
	})
}

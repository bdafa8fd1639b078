package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/storage"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func createEventAndJob(t *testing.T, store *SQLiteStorage, eventID, jobID string) {
	t.Helper()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer uow.Rollback()

	event := domain.NewEvent(eventID, domain.EventPush, "igmhub/picca")
	event.Ref = "refs/heads/master"
	event.ChangedFiles = []string{"py/picca/io.py"}
	if err := uow.Events().Create(ctx, event); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if err := uow.Jobs().Create(ctx, domain.NewJob(jobID, eventID, "Pylint")); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestEventRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	uow, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	event := domain.NewEvent("ev-1", domain.EventPullRequest, "igmhub/picca")
	event.Ref = "refs/pull/42/merge"
	event.ChangedFiles = []string{"README.md", "py/picca/io.py"}
	event.Payload["number"] = float64(42)

	if err := uow.Events().Create(ctx, event); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	uow, _ = store.Begin(ctx)
	defer uow.Rollback()
	got, err := uow.Events().Get(ctx, "ev-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Kind != domain.EventPullRequest {
		t.Errorf("Kind = %s", got.Kind)
	}
	if got.Ref != "refs/pull/42/merge" {
		t.Errorf("Ref = %q", got.Ref)
	}
	if len(got.ChangedFiles) != 2 {
		t.Errorf("ChangedFiles = %v", got.ChangedFiles)
	}
	if got.Payload["number"] != float64(42) {
		t.Errorf("Payload = %v", got.Payload)
	}

	if _, err := uow.Events().Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestJobUpdateAndVersioning(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	createEventAndJob(t, store, "ev-1", "job-1")

	uow, _ := store.Begin(ctx)
	job, err := uow.Jobs().Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := job.SetState(domain.JobStateRunning); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if err := uow.Jobs().Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if job.Version != 2 {
		t.Errorf("Version = %d, want 2", job.Version)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// A stale copy must be rejected.
	uow, _ = store.Begin(ctx)
	defer uow.Rollback()
	stale := domain.NewJob("job-1", "ev-1", "Pylint")
	stale.Version = 1
	if err := uow.Jobs().Update(ctx, stale); !errors.Is(err, domain.ErrConcurrentModify) {
		t.Errorf("stale Update error = %v, want ErrConcurrentModify", err)
	}

	got, err := uow.Jobs().Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != domain.JobStateRunning {
		t.Errorf("State = %s, want RUNNING", got.State)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not persisted")
	}
}

func TestJobFailurePersisted(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	createEventAndJob(t, store, "ev-1", "job-1")

	uow, _ := store.Begin(ctx)
	job, _ := uow.Jobs().Get(ctx, "job-1")
	job.SetState(domain.JobStateRunning)
	if err := job.Fail(`step "Lint bin scripts" exited 2`); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	if err := uow.Jobs().Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	uow.Commit()

	uow, _ = store.Begin(ctx)
	defer uow.Rollback()
	got, _ := uow.Jobs().Get(ctx, "job-1")
	if got.Failure == nil || got.Failure.Message == "" {
		t.Fatalf("Failure = %+v, want persisted message", got.Failure)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not persisted")
	}
}

func TestNextPendingOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	uow, _ := store.Begin(ctx)
	for i, id := range []string{"job-a", "job-b"} {
		event := domain.NewEvent("ev-"+id, domain.EventPush, "igmhub/picca")
		if err := uow.Events().Create(ctx, event); err != nil {
			t.Fatalf("create event: %v", err)
		}
		job := domain.NewJob(id, event.ID, "Pylint")
		job.CreatedAt = job.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := uow.Jobs().Create(ctx, job); err != nil {
			t.Fatalf("create job: %v", err)
		}
	}
	uow.Commit()

	uow, _ = store.Begin(ctx)
	defer uow.Rollback()
	next, err := uow.Jobs().NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next.ID != "job-a" {
		t.Errorf("NextPending = %s, want job-a (oldest first)", next.ID)
	}
}

func TestNextPendingEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	uow, _ := store.Begin(ctx)
	defer uow.Rollback()
	if _, err := uow.Jobs().NextPending(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("NextPending error = %v, want ErrNotFound", err)
	}
}

func TestStepRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	createEventAndJob(t, store, "ev-1", "job-1")

	uow, _ := store.Begin(ctx)
	steps := []*domain.StepRun{
		domain.NewStepRun("job-1", 0, "List checkout", "ls", domain.StepClassDiagnostic),
		domain.NewStepRun("job-1", 1, "Lint bin scripts", "pylint bin", domain.StepClassFatal),
	}
	for _, step := range steps {
		if err := uow.Steps().Create(ctx, step); err != nil {
			t.Fatalf("Create step failed: %v", err)
		}
	}
	uow.Commit()

	uow, _ = store.Begin(ctx)
	step := steps[1]
	step.SetState(domain.StepStateRunning)
	step.SetState(domain.StepStateFailed)
	step.ExitCode = 2
	step.Log = "E0602: undefined variable"
	if err := uow.Steps().Update(ctx, step); err != nil {
		t.Fatalf("Update step failed: %v", err)
	}
	uow.Commit()

	uow, _ = store.Begin(ctx)
	defer uow.Rollback()
	got, err := uow.Steps().ListByJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListByJob failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Index != 0 || got[1].Index != 1 {
		t.Error("steps not ordered by index")
	}
	if got[0].Class != domain.StepClassDiagnostic {
		t.Errorf("step 0 class = %s", got[0].Class)
	}
	if got[1].State != domain.StepStateFailed || got[1].ExitCode != 2 {
		t.Errorf("step 1 = %s exit %d", got[1].State, got[1].ExitCode)
	}
	if got[1].Log == "" {
		t.Error("step log not persisted")
	}
}

func TestJobListFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	createEventAndJob(t, store, "ev-1", "job-1")
	createEventAndJob(t, store, "ev-2", "job-2")

	uow, _ := store.Begin(ctx)
	job, _ := uow.Jobs().Get(ctx, "job-1")
	job.Skip("all changed files match ignore patterns")
	uow.Jobs().Update(ctx, job)
	uow.Commit()

	uow, _ = store.Begin(ctx)
	defer uow.Rollback()

	skipped, err := uow.Jobs().List(ctx, storage.ListOptions{
		JobStates: []domain.JobState{domain.JobStateSkipped},
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(skipped) != 1 || skipped[0].ID != "job-1" {
		t.Errorf("skipped = %v", skipped)
	}
	if skipped[0].Reason == "" {
		t.Error("skip reason not persisted")
	}

	all, err := uow.Jobs().List(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/executor"
	"github.com/example/lintci/internal/provision"
	"github.com/example/lintci/internal/storage"
	"github.com/example/lintci/internal/storage/sqlite"
	"github.com/example/lintci/internal/workflow"
)

func newTestService(t *testing.T, fake *executor.Fake, def *workflow.Definition, checkoutFiles ...string) *JobService {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	checkout := t.TempDir()
	for _, name := range checkoutFiles {
		path := filepath.Join(checkout, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	idCounter := 0
	return New(store, def, Options{
		Executor:    fake,
		Workspaces:  provision.NewManager(t.TempDir()),
		CheckoutDir: checkout,
		IDGenerator: func() string {
			idCounter++
			return fmt.Sprintf("id-%d", idCounter)
		},
	})
}

func pushEvent(changed ...string) *domain.Event {
	ev := domain.NewEvent("", domain.EventPush, "igmhub/picca")
	ev.Ref = "refs/heads/master"
	ev.ChangedFiles = changed
	return ev
}

// testWorkflow is a compact pipeline with the same step taxonomy as the
// builtin one: two diagnostics, installs, a conditional manifest step,
// and two analyzer steps (the first continue-on-error).
func testWorkflow() *workflow.Definition {
	def, err := workflow.Parse([]byte(`
name: Pylint
on:
  push:
    paths-ignore: ["**.md"]
  pull_request:
    paths-ignore: ["**.md"]
  merge_group:
env:
  python-version: "3.8"
steps:
  - name: List checkout
    run: ls
    diagnostic: true
  - name: Install libbz2 headers
    run: apt-get install -y libbz2-dev
  - name: Install requirements
    run: pip install -r requirements.txt
    if_file_exists: requirements.txt
  - name: Install package
    run: pip install -e .
  - name: Lint delta_extraction
    run: pylint py/picca/delta_extraction
    continue_on_error: true
  - name: Lint bin scripts
    run: pylint bin
`))
	if err != nil {
		panic(err)
	}
	return def
}

func runToCompletion(t *testing.T, svc *JobService, ev *domain.Event) (*domain.Job, []*domain.StepRun) {
	t.Helper()
	ctx := context.Background()

	job, err := svc.SubmitEvent(ctx, ev)
	if err != nil {
		t.Fatalf("SubmitEvent failed: %v", err)
	}
	if job.State == domain.JobStateSkipped {
		return job, nil
	}

	if _, err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("RunJob failed: %v", err)
	}
	job, steps, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	return job, steps
}

func stepByName(t *testing.T, steps []*domain.StepRun, name string) *domain.StepRun {
	t.Helper()
	for _, step := range steps {
		if step.Name == name {
			return step
		}
	}
	t.Fatalf("step %q not found", name)
	return nil
}

func TestJobSucceedsWhenAllStepsPass(t *testing.T) {
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateSucceeded {
		t.Fatalf("job state = %s, want SUCCEEDED", job.State)
	}
	for _, step := range steps {
		if step.State != domain.StepStateSucceeded {
			t.Errorf("step %q state = %s, want SUCCEEDED", step.Name, step.State)
		}
	}
	// Both analyzer invocations ran.
	commands := fake.Commands()
	if len(commands) != 6 {
		t.Errorf("commands run = %v", commands)
	}
}

func TestMarkdownOnlyPushIsSkipped(t *testing.T) {
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow())

	job, _ := runToCompletion(t, svc, pushEvent("README.md", "docs/guide.md"))

	if job.State != domain.JobStateSkipped {
		t.Fatalf("job state = %s, want SKIPPED", job.State)
	}
	if job.Reason == "" {
		t.Error("skip reason missing")
	}
	if len(fake.Commands()) != 0 {
		t.Errorf("commands run for skipped job: %v", fake.Commands())
	}
}

func TestMergeGroupAlwaysRuns(t *testing.T) {
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow())

	ev := domain.NewEvent("", domain.EventMergeGroup, "igmhub/picca")
	ev.ChangedFiles = []string{"README.md"} // would suppress a push
	job, _ := runToCompletion(t, svc, ev)

	if job.State != domain.JobStateSucceeded {
		t.Fatalf("job state = %s, want SUCCEEDED", job.State)
	}
}

func TestInstallFailureHaltsPipeline(t *testing.T) {
	fake := executor.NewFake().WithExit("apt-get install -y libbz2-dev", 100)
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateFailed {
		t.Fatalf("job state = %s, want FAILED", job.State)
	}
	if job.Failure == nil {
		t.Fatal("job failure not recorded")
	}

	if got := stepByName(t, steps, "Install libbz2 headers"); got.State != domain.StepStateFailed || got.ExitCode != 100 {
		t.Errorf("install step = %s exit %d", got.State, got.ExitCode)
	}
	// Nothing after the failed install executes.
	for _, name := range []string{"Install requirements", "Install package", "Lint delta_extraction", "Lint bin scripts"} {
		if got := stepByName(t, steps, name); got.State != domain.StepStateSkipped {
			t.Errorf("step %q state = %s, want SKIPPED", name, got.State)
		}
	}
	for _, cmd := range fake.Commands() {
		if cmd == "pip install -e ." {
			t.Error("install step executed after fatal failure")
		}
	}
}

func TestFirstAnalyzerFailureKeepsSecondVisible(t *testing.T) {
	fake := executor.NewFake().WithExit("pylint py/picca/delta_extraction", 2)
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateFailed {
		t.Fatalf("job state = %s, want FAILED", job.State)
	}
	if job.Failure.Message != `step "Lint delta_extraction" exited 2` {
		t.Errorf("failure message = %q", job.Failure.Message)
	}

	// The second analyzer still ran and succeeded; the job fails anyway.
	if got := stepByName(t, steps, "Lint bin scripts"); got.State != domain.StepStateSucceeded {
		t.Errorf("second analyzer state = %s, want SUCCEEDED", got.State)
	}
}

func TestSecondAnalyzerFailureFailsJob(t *testing.T) {
	fake := executor.NewFake().WithExit("pylint bin", 4)
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("bin/export_co.py"))

	if job.State != domain.JobStateFailed {
		t.Fatalf("job state = %s, want FAILED", job.State)
	}
	if got := stepByName(t, steps, "Lint delta_extraction"); got.State != domain.StepStateSucceeded {
		t.Errorf("first analyzer state = %s", got.State)
	}
}

func TestDiagnosticFailureDoesNotFailJob(t *testing.T) {
	fake := executor.NewFake().WithExit("ls", 1)
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateSucceeded {
		t.Fatalf("job state = %s, want SUCCEEDED", job.State)
	}
	if got := stepByName(t, steps, "List checkout"); got.State != domain.StepStateFailed {
		t.Errorf("diagnostic step state = %s, want FAILED (recorded but ignored)", got.State)
	}
}

func TestMissingManifestSkipsConditionalStep(t *testing.T) {
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow()) // no requirements.txt

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateSucceeded {
		t.Fatalf("job state = %s, want SUCCEEDED", job.State)
	}
	if got := stepByName(t, steps, "Install requirements"); got.State != domain.StepStateSkipped {
		t.Errorf("conditional step state = %s, want SKIPPED", got.State)
	}
	for _, cmd := range fake.Commands() {
		if cmd == "pip install -r requirements.txt" {
			t.Error("conditional step executed without its manifest")
		}
	}
}

func TestExecutorStartErrorFailsJob(t *testing.T) {
	fake := executor.NewFake().WithError("pip install -e .", errors.New("no such shell"))
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, steps := runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if job.State != domain.JobStateFailed {
		t.Fatalf("job state = %s, want FAILED", job.State)
	}
	for _, name := range []string{"Lint delta_extraction", "Lint bin scripts"} {
		if got := stepByName(t, steps, name); got.State != domain.StepStateSkipped {
			t.Errorf("step %q state = %s, want SKIPPED", name, got.State)
		}
	}
}

func TestStepsRunInCheckoutWithPinnedEnvironment(t *testing.T) {
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	runToCompletion(t, svc, pushEvent("py/picca/io.py"))

	if len(fake.Calls) == 0 {
		t.Fatal("no steps executed")
	}
	for _, call := range fake.Calls {
		if call.Dir != svc.checkoutDir {
			t.Errorf("step ran in %q, want checkout %q", call.Dir, svc.checkoutDir)
		}
		if call.Environment["LINTCI_PYTHON_VERSION"] != "3.8" {
			t.Errorf("step environment = %v, want pinned python version", call.Environment)
		}
	}
}

func TestRunNextDrainsPendingJobs(t *testing.T) {
	ctx := context.Background()
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	if _, err := svc.SubmitEvent(ctx, pushEvent("py/picca/io.py")); err != nil {
		t.Fatalf("SubmitEvent failed: %v", err)
	}
	if _, err := svc.SubmitEvent(ctx, pushEvent("bin/export_co.py")); err != nil {
		t.Fatalf("SubmitEvent failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		ran, err := svc.RunNext(ctx)
		if err != nil {
			t.Fatalf("RunNext failed: %v", err)
		}
		if !ran {
			t.Fatalf("RunNext run %d reported no work", i)
		}
	}

	ran, err := svc.RunNext(ctx)
	if err != nil {
		t.Fatalf("RunNext failed: %v", err)
	}
	if ran {
		t.Error("RunNext reported work on an empty queue")
	}

	jobs, err := svc.ListJobs(ctx, storage.ListOptions{
		JobStates: []domain.JobState{domain.JobStateSucceeded},
	})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("succeeded jobs = %d, want 2", len(jobs))
	}
}

func TestRunJobRejectsNonPending(t *testing.T) {
	ctx := context.Background()
	fake := executor.NewFake()
	svc := newTestService(t, fake, testWorkflow(), "requirements.txt")

	job, _ := runToCompletion(t, svc, pushEvent("py/picca/io.py"))
	if _, err := svc.RunJob(ctx, job.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("rerunning finished job: error = %v, want ErrInvalidState", err)
	}
}

// Command lintci runs one lint pipeline locally and prints the result.
// It is the one-shot equivalent of submitting an event to lintci-server:
// triggers are evaluated the same way, and the process exits non-zero
// when the job fails.
//
// Usage:
//
//	lintci -kind push -changed "py/picca/io.py,bin/export_co.py"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/service"
	"github.com/example/lintci/internal/storage/sqlite"
	"github.com/example/lintci/internal/workflow"
)

func main() {
	var (
		workflowPath = flag.String("workflow", "", "workflow YAML file (default: builtin pylint workflow)")
		kind         = flag.String("kind", "push", "event kind: push, pull_request, or merge_group")
		repo         = flag.String("repo", "local/checkout", "repository the event belongs to")
		ref          = flag.String("ref", "", "git ref of the event")
		changed      = flag.String("changed", "", "comma-separated list of changed files")
		checkout     = flag.String("checkout", ".", "source checkout steps run against")
		stepTimeout  = flag.Duration("step-timeout", service.DefaultStepTimeout, "per-step execution timeout")
	)
	flag.Parse()

	def := workflow.Builtin()
	if *workflowPath != "" {
		loaded, err := workflow.Load(*workflowPath)
		if err != nil {
			log.Fatalf("Failed to load workflow %s: %v", *workflowPath, err)
		}
		def = loaded
	}

	// One-shot runs keep nothing; an in-memory database still gives the
	// service its usual transactional storage.
	store, err := sqlite.New(":memory:")
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jobs := service.New(store, def, service.Options{
		CheckoutDir: *checkout,
		StepTimeout: *stepTimeout,
	})

	event := domain.NewEvent("", domain.EventKind(*kind), *repo)
	event.Ref = *ref
	if *changed != "" {
		for _, f := range strings.Split(*changed, ",") {
			if f = strings.TrimSpace(f); f != "" {
				event.ChangedFiles = append(event.ChangedFiles, f)
			}
		}
	}

	job, err := jobs.SubmitEvent(ctx, event)
	if err != nil {
		log.Fatalf("Failed to submit event: %v", err)
	}

	if job.State == domain.JobStateSkipped {
		fmt.Printf("Workflow %q skipped: %s\n", def.Name, job.Reason)
		return
	}

	if _, err := jobs.RunJob(ctx, job.ID); err != nil {
		log.Fatalf("Failed to run job: %v", err)
	}

	job, steps, err := jobs.GetJob(ctx, job.ID)
	if err != nil {
		log.Fatalf("Failed to load job result: %v", err)
	}

	fmt.Printf("Workflow %q: %s\n", def.Name, job.State)
	for _, step := range steps {
		fmt.Printf("  [%s] %s", step.State, step.Name)
		if step.State == domain.StepStateFailed {
			fmt.Printf(" (exit %d)", step.ExitCode)
		}
		fmt.Println()
		if step.State == domain.StepStateFailed && step.Log != "" {
			for _, line := range strings.Split(strings.TrimRight(step.Log, "\n"), "\n") {
				fmt.Printf("      %s\n", line)
			}
		}
	}
	if job.Failure != nil {
		fmt.Printf("\n%s\n", job.Failure.Message)
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		fmt.Printf("Total time: %v\n", job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond))
	}

	if job.State == domain.JobStateFailed {
		os.Exit(1)
	}
}

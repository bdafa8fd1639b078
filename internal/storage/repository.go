package storage

import (
	"context"

	"github.com/example/lintci/internal/domain"
)

// ListOptions provides filtering options for list operations.
type ListOptions struct {
	// IDs to filter by (empty = all)
	IDs []string

	// States to filter by (empty = all)
	JobStates []domain.JobState

	// Kinds to filter by (empty = all)
	EventKinds []domain.EventKind

	// Pagination
	Limit  int
	Offset int
}

// EventRepository provides access to Event storage.
type EventRepository interface {
	// Create persists a new Event.
	Create(ctx context.Context, event *domain.Event) error

	// Get retrieves an Event by ID.
	Get(ctx context.Context, id string) (*domain.Event, error)

	// List lists Events with optional filtering.
	List(ctx context.Context, opts ListOptions) ([]*domain.Event, error)
}

// JobRepository provides access to Job storage.
type JobRepository interface {
	// Create persists a new Job.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a Job by ID.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Update updates an existing Job, guarded by its version.
	Update(ctx context.Context, job *domain.Job) error

	// List lists Jobs with optional filtering, newest first.
	List(ctx context.Context, opts ListOptions) ([]*domain.Job, error)

	// NextPending returns the oldest PENDING job, or ErrNotFound.
	NextPending(ctx context.Context) (*domain.Job, error)
}

// StepRepository provides access to StepRun storage.
type StepRepository interface {
	// Create persists a new StepRun.
	Create(ctx context.Context, step *domain.StepRun) error

	// Update updates an existing StepRun.
	Update(ctx context.Context, step *domain.StepRun) error

	// ListByJob lists a job's steps ordered by index.
	ListByJob(ctx context.Context, jobID string) ([]*domain.StepRun, error)
}

// UnitOfWork provides transactional access to all repositories.
type UnitOfWork interface {
	Events() EventRepository
	Jobs() JobRepository
	Steps() StepRepository

	// Transaction control
	Commit() error
	Rollback() error
}

// Storage provides the main entry point for storage operations.
type Storage interface {
	// Begin starts a new transaction and returns a UnitOfWork.
	Begin(ctx context.Context) (UnitOfWork, error)

	// Close closes the storage connection.
	Close() error

	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}

package domain

import (
	"fmt"
	"time"
)

// EventKind identifies the kind of repository event that can trigger a job.
type EventKind string

const (
	EventPush        EventKind = "push"
	EventPullRequest EventKind = "pull_request"
	EventMergeGroup  EventKind = "merge_group"
)

// Valid reports whether the kind is one of the supported event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventPush, EventPullRequest, EventMergeGroup:
		return true
	default:
		return false
	}
}

// Event is a repository event delivered by a forge (push, pull request,
// or merge group), together with the changed-file list used for path
// filter evaluation.
type Event struct {
	ID           string
	Kind         EventKind
	Repository   string
	Ref          string
	ChangedFiles []string
	Payload      map[string]any
	ReceivedAt   time.Time
}

// NewEvent creates a new Event with the given ID.
func NewEvent(id string, kind EventKind, repository string) *Event {
	return &Event{
		ID:         id,
		Kind:       kind,
		Repository: repository,
		Payload:    make(map[string]any),
		ReceivedAt: time.Now().UTC(),
	}
}

// Validate checks that the event is well formed.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: event ID is empty", ErrInvalidArgument)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unsupported event kind %q", ErrInvalidArgument, e.Kind)
	}
	if e.Repository == "" {
		return fmt.Errorf("%w: event repository is empty", ErrInvalidArgument)
	}
	return nil
}

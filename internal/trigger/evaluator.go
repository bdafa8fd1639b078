// Package trigger decides whether an incoming repository event starts a
// job for a given workflow.
package trigger

import (
	"fmt"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/workflow"
)

// Decision is the outcome of evaluating an event against a workflow.
type Decision struct {
	Run    bool
	Reason string
}

// Evaluator evaluates events against one workflow definition.
type Evaluator struct {
	def *workflow.Definition
}

// NewEvaluator creates an Evaluator for the given workflow.
func NewEvaluator(def *workflow.Definition) *Evaluator {
	return &Evaluator{def: def}
}

// Evaluate decides whether the event should start a job. Suppression is
// a no-op decision, never an error.
func (e *Evaluator) Evaluate(event *domain.Event) Decision {
	trig, ok := e.def.On.For(event.Kind)
	if !ok {
		return Decision{
			Run:    false,
			Reason: fmt.Sprintf("workflow %q has no %s trigger", e.def.Name, event.Kind),
		}
	}

	if suppressed, reason := trig.Filter.Suppresses(event.ChangedFiles); suppressed {
		return Decision{Run: false, Reason: reason}
	}

	return Decision{
		Run:    true,
		Reason: fmt.Sprintf("matched %s trigger", event.Kind),
	}
}

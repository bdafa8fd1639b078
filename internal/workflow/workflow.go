// Package workflow loads and validates lint workflow definitions.
//
// A definition mirrors the shape of a forge workflow file: trigger
// conditions with optional path filters, a pinned interpreter version,
// and an ordered list of shell steps.
package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/lintci/internal/domain"
)

// Definition is a parsed workflow file.
type Definition struct {
	Name  string   `yaml:"name"`
	On    Triggers `yaml:"on"`
	Env   Env      `yaml:"env"`
	Steps []Step   `yaml:"steps"`
}

// Env holds the execution environment selection for a workflow.
type Env struct {
	PythonVersion string `yaml:"python-version"`
}

// Step is one shell invocation of the pipeline.
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`

	// Diagnostic steps are informational only; their exit status is
	// recorded but never affects the job outcome.
	Diagnostic bool `yaml:"diagnostic"`

	// ContinueOnError lets the pipeline proceed past a failing fatal
	// step. The failure still fails the job.
	ContinueOnError bool `yaml:"continue_on_error"`

	// IfFileExists skips the step when the named file is absent from
	// the checkout, without failing the job.
	IfFileExists string `yaml:"if_file_exists"`
}

// Class returns the domain step class for this step.
func (s Step) Class() domain.StepClass {
	if s.Diagnostic {
		return domain.StepClassDiagnostic
	}
	return domain.StepClassFatal
}

// Trigger binds an event kind to its path filter.
type Trigger struct {
	Kind   domain.EventKind
	Filter Filter
}

// Triggers is the set of event kinds a workflow responds to. A bare
// trigger key (no filter body) is valid and means "always run".
type Triggers struct {
	list []Trigger
}

// UnmarshalYAML decodes the `on:` mapping while preserving the
// distinction between an absent trigger and a present one with no
// filter body (`merge_group:`).
func (t *Triggers) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: \"on\" must be a mapping of event kinds", domain.ErrInvalidArgument)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		kind := domain.EventKind(keyNode.Value)
		if !kind.Valid() {
			return fmt.Errorf("%w: unsupported trigger %q", domain.ErrInvalidArgument, keyNode.Value)
		}

		var filter Filter
		if valNode.Kind == yaml.MappingNode {
			if err := valNode.Decode(&filter); err != nil {
				return fmt.Errorf("trigger %q: %w", keyNode.Value, err)
			}
		}
		t.list = append(t.list, Trigger{Kind: kind, Filter: filter})
	}
	return nil
}

// For returns the trigger declared for the given event kind, if any.
func (t *Triggers) For(kind domain.EventKind) (Trigger, bool) {
	for _, trig := range t.list {
		if trig.Kind == kind {
			return trig, true
		}
	}
	return Trigger{}, false
}

// Kinds returns the declared event kinds in declaration order.
func (t *Triggers) Kinds() []domain.EventKind {
	kinds := make([]domain.EventKind, len(t.list))
	for i, trig := range t.list {
		kinds[i] = trig.Kind
	}
	return kinds
}

// add is used by Builtin; file-based definitions go through UnmarshalYAML.
func (t *Triggers) add(kind domain.EventKind, filter Filter) {
	t.list = append(t.list, Trigger{Kind: kind, Filter: filter})
}

// Parse decodes and validates a workflow definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and parses a workflow definition from a file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", path, err)
	}
	return def, nil
}

// Validate checks that the definition is complete enough to run.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: workflow name is empty", domain.ErrInvalidArgument)
	}
	if len(d.On.list) == 0 {
		return fmt.Errorf("%w: workflow %q declares no triggers", domain.ErrInvalidArgument, d.Name)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q declares no steps", domain.ErrInvalidArgument, d.Name)
	}
	for i, step := range d.Steps {
		if step.Run == "" {
			return fmt.Errorf("%w: step %d of workflow %q has no command", domain.ErrInvalidArgument, i, d.Name)
		}
	}
	return nil
}

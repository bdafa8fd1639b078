package workflow

import "github.com/example/lintci/internal/domain"

// Builtin returns the stock pylint workflow: provision a Python
// environment, install the checked-out package in editable mode, and
// lint its two source trees. Used when the server is started without a
// workflow file.
func Builtin() *Definition {
	markdownOnly := Filter{PathsIgnore: []string{"**.md"}}

	var on Triggers
	on.add(domain.EventPush, markdownOnly)
	on.add(domain.EventPullRequest, markdownOnly)
	on.add(domain.EventMergeGroup, Filter{})

	return &Definition{
		Name: "Pylint",
		On:   on,
		Env:  Env{PythonVersion: "3.8"},
		Steps: []Step{
			{Name: "List checkout", Run: "ls", Diagnostic: true},
			{Name: "Print working directory", Run: "pwd", Diagnostic: true},
			{Name: "Install libbz2 headers", Run: "sudo apt-get install -y libbz2-dev"},
			{Name: "Upgrade pip", Run: "python -m pip install --upgrade pip"},
			{
				Name:         "Install requirements",
				Run:          "pip install -r requirements.txt",
				IfFileExists: "requirements.txt",
			},
			{Name: "Install pylint", Run: "pip install pylint"},
			{Name: "Install package (editable)", Run: "pip install -e ."},
			{
				Name: "Lint delta_extraction",
				Run:  "pylint py/picca/delta_extraction",
				// Keep the second lint report visible even when the
				// first tree has findings. The failure still fails
				// the job.
				ContinueOnError: true,
			},
			{Name: "Lint bin scripts", Run: "pylint bin"},
		},
	}
}

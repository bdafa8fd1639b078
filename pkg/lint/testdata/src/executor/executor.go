// Package executor is a stub for testing the executor linter.
// This package provides minimal type stubs so the linter can analyze
// code that imports the real executor package.
package executor

import "time"

// Config specifies how to run a single command.
type Config struct {
	Command     string
	Dir         string
	Environment map[string]string
	Timeout     time.Duration
}

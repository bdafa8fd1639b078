package executor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is a test double for Executor. It records every call and returns
// configured exit codes per command, succeeding by default.
type Fake struct {
	mu sync.Mutex

	// Calls tracks every Run invocation in order.
	Calls []Config

	// ExitCodes maps a command line to the exit code to return.
	ExitCodes map[string]int

	// Errs maps a command line to a start error.
	Errs map[string]error

	// Delay adds artificial delay to Run calls.
	Delay time.Duration
}

// NewFake creates a new Fake executor.
func NewFake() *Fake {
	return &Fake{
		ExitCodes: make(map[string]int),
		Errs:      make(map[string]error),
	}
}

// WithExit configures the exit code for a command.
func (f *Fake) WithExit(command string, code int) *Fake {
	f.ExitCodes[command] = code
	return f
}

// WithError configures a start error for a command.
func (f *Fake) WithError(command string, err error) *Fake {
	f.Errs[command] = err
	return f
}

// Run implements Executor.
func (f *Fake) Run(ctx context.Context, cfg Config) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, cfg)

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return &Result{ExitCode: -1, TimedOut: true}, nil
		}
	}

	if err, ok := f.Errs[cfg.Command]; ok {
		return nil, err
	}

	code := f.ExitCodes[cfg.Command]
	result := &Result{
		ExitCode: code,
		Duration: time.Millisecond,
	}
	if code == 0 {
		result.Log = fmt.Sprintf("ok: %s\n", cfg.Command)
	} else {
		result.Log = fmt.Sprintf("failed: %s (exit %d)\n", cfg.Command, code)
	}
	return result, nil
}

// Commands returns the command lines run so far.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	commands := make([]string, len(f.Calls))
	for i, call := range f.Calls {
		commands[i] = call.Command
	}
	return commands
}

// Reset clears recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

// Package executor runs pipeline steps as shell subprocesses. All
// subprocess execution in the service goes through this package.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Config specifies how to run a single command.
type Config struct {
	// Command is the shell command line to execute.
	Command string

	// Dir is the working directory for the command.
	Dir string

	// Environment contains additional environment variables.
	Environment map[string]string

	// Timeout is the maximum time to wait for the command.
	Timeout time.Duration
}

// Result captures the outcome of one command invocation. The contract
// with callers is the exit code plus captured output; no output parsing
// happens here.
type Result struct {
	ExitCode int
	Log      string
	Duration time.Duration
	TimedOut bool
}

// Executor runs a single shell command and reports its exit status.
type Executor interface {
	Run(ctx context.Context, cfg Config) (*Result, error)
}

// Shell executes commands via a shell, capturing combined output.
type Shell struct {
	// ShellPath is the shell to use. Defaults to "/bin/sh".
	ShellPath string

	// ShellArg is the argument passed before the command. Defaults to "-c".
	ShellArg string
}

// NewShell creates a Shell with default settings.
func NewShell() *Shell {
	return &Shell{
		ShellPath: "/bin/sh",
		ShellArg:  "-c",
	}
}

// Run executes the command and returns its exit status and combined
// output. A timeout or cancellation is reported via Result.TimedOut; an
// error is returned only when the command could not be started at all.
func (s *Shell) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Command == "" {
		return nil, errors.New("empty command")
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	shell := s.ShellPath
	if shell == "" {
		shell = "/bin/sh"
	}
	shellArg := s.ShellArg
	if shellArg == "" {
		shellArg = "-c"
	}

	cmd := exec.CommandContext(ctx, shell, shellArg, cfg.Command)
	cmd.Dir = cfg.Dir
	cmd.Env = os.Environ()
	for k, v := range cfg.Environment {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	start := time.Now()
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	result := &Result{
		Log:      string(output),
		Duration: duration,
	}

	if ctx.Err() != nil {
		result.TimedOut = true
		result.ExitCode = -1
		result.Log = fmt.Sprintf("command cancelled or timed out: %v\n%s", ctx.Err(), result.Log)
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	return result, nil
}

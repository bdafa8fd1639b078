// Package a is a test package for the executor linter.
package a

import (
	"context"
	"os/exec"

	"executor"
)

// Test cases

func directCommand() {
	exec.Command("ls") // want "direct exec.Command call"
}

func directCommandContext(ctx context.Context) {
	exec.CommandContext(ctx, "ls") // want "direct exec.CommandContext call"
}

func emptyConfigCommand() executor.Config {
	return executor.Config{Command: ""} // want "executor.Config with empty Command"
}

// Valid cases - should NOT produce warnings

func lookPathIsFine() {
	exec.LookPath("pylint")
}

func validConfig() executor.Config {
	return executor.Config{Command: "pylint bin"}
}

func dynamicCommand(cmd string) executor.Config {
	return executor.Config{Command: cmd}
}

// Command lintci-lint runs static analysis on executor usage.
//
// Usage:
//
//	lintci-lint ./...
//
// It reports direct os/exec process spawns outside the executor package
// and executor.Config literals with an empty Command.
package main

import (
	"github.com/example/lintci/pkg/lint"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(lint.Analyzer)
}

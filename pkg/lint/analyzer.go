// Package lint provides static analysis checks for executor usage.
//
// All subprocess execution in this codebase goes through the executor
// package. This analyzer detects violations of that contract:
//   - Direct exec.Command / exec.CommandContext calls outside executor
//   - executor.Config literals with an empty Command string
//
// Usage:
//
//	go install github.com/example/lintci/cmd/lintci-lint@latest
//	lintci-lint ./...
package lint

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the executor usage analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "execlint",
	Doc:      "checks that subprocess execution goes through the executor package",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	// The executor package itself is the one place allowed to spawn
	// subprocesses directly.
	inExecutor := pass.Pkg.Name() == "executor"

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
		(*ast.CompositeLit)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		switch node := n.(type) {
		case *ast.CallExpr:
			if !inExecutor {
				checkExecCall(pass, node)
			}
		case *ast.CompositeLit:
			checkConfigLiteral(pass, node)
		}
	})

	return nil, nil
}

// checkExecCall reports direct os/exec process spawns.
func checkExecCall(pass *analysis.Pass, call *ast.CallExpr) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "exec" {
		return
	}

	switch sel.Sel.Name {
	case "Command", "CommandContext":
		pass.Reportf(call.Pos(),
			"direct exec.%s call - subprocess execution must go through the executor package",
			sel.Sel.Name)
	}
}

// checkConfigLiteral reports executor.Config literals whose Command
// field is an empty string literal.
func checkConfigLiteral(pass *analysis.Pass, lit *ast.CompositeLit) {
	sel, ok := lit.Type.(*ast.SelectorExpr)
	if !ok {
		return
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "executor" || sel.Sel.Name != "Config" {
		return
	}

	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok || key.Name != "Command" {
			continue
		}
		if val, ok := kv.Value.(*ast.BasicLit); ok && val.Kind == token.STRING {
			if val.Value == `""` || val.Value == "``" {
				pass.Reportf(val.Pos(),
					"executor.Config with empty Command - Run will fail at runtime")
			}
		}
	}
}

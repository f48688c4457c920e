package catalog

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// Guard is a compiled, side-effect-free predicate gating whether a
// transition edge is currently permitted.
//
// Guard expressions use expr-lang syntax and see the committed snapshot as
// a `values` map of binding key → string value:
//
//	values["toggle.v"] == "true"
//	values["form.state"] in ["draft", "review"]
//
// Guards are compiled once at definition time (so malformed expressions
// fail fast) and evaluated at transition time against the current
// committed snapshot. They never see uncommitted overlay values.
type Guard struct {
	expression string
	program    *exprvm.Program
}

// CompileGuard compiles a guard expression.
// The expression must evaluate to a boolean.
func CompileGuard(expression string) (*Guard, error) {
	if expression == "" {
		return nil, fmt.Errorf("compile guard: expression must not be empty")
	}

	program, err := exprlang.Compile(expression,
		exprlang.Env(guardEnv(nil)),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile guard %q: %w", expression, err)
	}

	return &Guard{expression: expression, program: program}, nil
}

// Eval runs the guard against a committed snapshot.
func (g *Guard) Eval(snap map[string]string) (bool, error) {
	out, err := exprlang.Run(g.program, guardEnv(snap))
	if err != nil {
		return false, fmt.Errorf("evaluate guard %q: %w", g.expression, err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate guard %q: result %T is not a boolean", g.expression, out)
	}
	return result, nil
}

// Expression returns the guard's source expression.
// Used for diagnostics and trace output.
func (g *Guard) Expression() string {
	return g.expression
}

// guardEnv builds the evaluation environment for a snapshot.
// A lookup of a key absent from the snapshot never equals a required
// string value, so guards on unset keys simply evaluate false.
func guardEnv(snap map[string]string) map[string]any {
	if snap == nil {
		snap = map[string]string{}
	}
	return map[string]any{"values": snap}
}

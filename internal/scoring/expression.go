package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrExpression wraps compile and evaluation failures.
var ErrExpression = errors.New("invalid expression")

// Expression is a compiled arithmetic function over intermediate codes,
// such as "0.5*CREDIT + 0.5*DPOSIT" or "PRIPOP/POPULN*100000".
type Expression struct {
	source  string
	vars    []string
	program *vm.Program
}

// Compile parses src with vars as the only visible identifiers.
// Referencing any other name is a compile error.
func Compile(src string, vars []string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty", ErrExpression)
	}
	program, err := expr.Compile(src, expr.Env(zeroEnv(vars)), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrExpression, src, err)
	}
	sorted := append([]string(nil), vars...)
	sort.Strings(sorted)
	return &Expression{source: src, vars: sorted, program: program}, nil
}

// Mean returns the arithmetic mean of vars as an expression.
func Mean(vars []string) (*Expression, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("%w: mean of nothing", ErrExpression)
	}
	return Compile(fmt.Sprintf("(%s) / %d", strings.Join(vars, " + "), len(vars)), vars)
}

// String returns the source text.
func (e *Expression) String() string {
	return e.source
}

// Vars returns the declared variables, sorted.
func (e *Expression) Vars() []string {
	return e.vars
}

// Eval evaluates the expression. Division by zero yields an infinite or
// NaN result rather than an error; callers check Finite.
func (e *Expression) Eval(env map[string]float64) (float64, error) {
	full := zeroEnv(e.vars)
	for k, v := range env {
		full[k] = v
	}
	out, err := expr.Run(e.program, full)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrExpression, e.source, err)
	}
	switch v := out.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%w: %q returned %T", ErrExpression, e.source, out)
}

func zeroEnv(vars []string) map[string]float64 {
	env := make(map[string]float64, len(vars))
	for _, v := range vars {
		env[v] = 0
	}
	return env
}

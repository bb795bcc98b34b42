// Package expr evaluates workflow expressions: ${{ ... }} interpolation in
// strings and if conditions on steps.
package expr

import (
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Evaluator = (*Engine)(nil)

// Engine implements ports.Evaluator on govaluate.
type Engine struct {
	hasher ports.Hasher
}

// NewEngine creates a new Engine. The hasher serves hashFiles calls.
func NewEngine(hasher ports.Hasher) *Engine {
	return &Engine{hasher: hasher}
}

// Interpolate replaces every ${{ ... }} segment in s with its evaluated
// value. Text outside segments is preserved verbatim.
func (e *Engine) Interpolate(s string, scope domain.ExprScope) (string, error) {
	if !strings.Contains(s, "${{") {
		return s, nil
	}

	var out strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${{")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			return "", zerr.With(zerr.New("unterminated expression"), "input", s)
		}

		val, err := e.eval(rest[start+3:start+end], scope)
		if err != nil {
			return "", err
		}
		out.WriteString(stringify(val))
		rest = rest[start+end+2:]
	}
}

var statusFnPattern = regexp.MustCompile(`\b(success|failure|always|cancelled)\s*\(`)

// Condition evaluates an if expression to a boolean. The empty expression
// means success(). An expression that names no status function is guarded
// by success() so that steps after a failure stay skipped.
func (e *Engine) Condition(cond string, scope domain.ExprScope) (bool, error) {
	cond = stripDelimiters(cond)
	switch {
	case cond == "":
		cond = "success()"
	case !statusFnPattern.MatchString(cond):
		cond = "success() && (" + cond + ")"
	}

	val, err := e.eval(cond, scope)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

func (e *Engine) eval(text string, scope domain.ExprScope) (any, error) {
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(rewriteRefs(text), e.functions(scope))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid expression"), "expression", strings.TrimSpace(text))
	}

	val, err := parsed.Eval(scopeParameters{scope: scope})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "expression evaluation failed"), "expression", strings.TrimSpace(text))
	}
	return val, nil
}

// stripDelimiters unwraps a condition written as ${{ ... }}. Conditions
// are expressions either way; the braces are optional there.
func stripDelimiters(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "${{") && strings.HasSuffix(t, "}}") {
		inner := t[3 : len(t)-2]
		if !strings.Contains(inner, "${{") {
			return strings.TrimSpace(inner)
		}
	}
	return t
}

// scopeParameters adapts an ExprScope to govaluate parameter lookup.
// Unknown references resolve to the empty string rather than failing.
type scopeParameters struct {
	scope domain.ExprScope
}

func (p scopeParameters) Get(name string) (any, error) {
	v, _ := p.scope.Lookup(name)
	return v, nil
}

package ports

import (
	"go.trai.ch/gantry/internal/core/domain"
)

// Evaluator resolves workflow expressions against a run scope.
//
//go:generate go run go.uber.org/mock/mockgen -source=evaluator.go -destination=mocks/mock_evaluator.go -package=mocks
type Evaluator interface {
	// Interpolate replaces every ${{ ... }} segment in s with its evaluated
	// value and returns the resulting string. Text outside segments is
	// preserved verbatim.
	Interpolate(s string, scope domain.ExprScope) (string, error)

	// Condition evaluates an if expression to a boolean. The empty
	// expression means success(). An expression that names no status
	// function is implicitly guarded by success().
	Condition(expr string, scope domain.ExprScope) (bool, error)
}

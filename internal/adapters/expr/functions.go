package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/zerr"
)

func (e *Engine) functions(scope domain.ExprScope) map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		"hashFiles": e.hashFilesFn(scope),
		"success": func(args ...any) (any, error) {
			return !scope.Cancelled && scope.JobStatus != domain.StatusFailed, nil
		},
		"failure": func(args ...any) (any, error) {
			return scope.JobStatus == domain.StatusFailed, nil
		},
		"always": func(args ...any) (any, error) {
			return true, nil
		},
		"cancelled": func(args ...any) (any, error) {
			return scope.Cancelled, nil
		},
		"contains":   binaryStringFn("contains", strings.Contains),
		"startsWith": binaryStringFn("startsWith", strings.HasPrefix),
		"endsWith":   binaryStringFn("endsWith", strings.HasSuffix),
		"format":     formatFn,
	}
}

func (e *Engine) hashFilesFn(scope domain.ExprScope) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, zerr.New("hashFiles expects at least one pattern")
		}
		patterns := make([]string, 0, len(args))
		for _, arg := range args {
			p, ok := arg.(string)
			if !ok {
				return nil, zerr.New("hashFiles patterns must be strings")
			}
			patterns = append(patterns, p)
		}

		digest, err := e.hasher.HashFiles(scope.Workspace, patterns)
		if err != nil {
			return nil, zerr.Wrap(err, "hashFiles failed")
		}
		return digest, nil
	}
}

func binaryStringFn(name string, fn func(string, string) bool) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, zerr.With(zerr.New("function expects two arguments"), "function", name)
		}
		return fn(stringify(args[0]), stringify(args[1])), nil
	}
}

// formatFn substitutes {0}, {1}, ... placeholders; {{ and }} escape
// literal braces.
func formatFn(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, zerr.New("format expects a format string")
	}
	layout, ok := args[0].(string)
	if !ok {
		return nil, zerr.New("format expects a string first argument")
	}

	layout = strings.ReplaceAll(layout, "{{", "\x00")
	layout = strings.ReplaceAll(layout, "}}", "\x01")
	for i, arg := range args[1:] {
		layout = strings.ReplaceAll(layout, "{"+strconv.Itoa(i)+"}", stringify(arg))
	}
	layout = strings.ReplaceAll(layout, "\x00", "{")
	return strings.ReplaceAll(layout, "\x01", "}"), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	default:
		return true
	}
}

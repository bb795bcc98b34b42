package expr

import (
	"regexp"
	"strings"
)

// refPattern matches dotted context references such as runner.os or
// steps.install.outputs.cache-hit. Segment names may contain hyphens,
// which govaluate would otherwise parse as subtraction.
var refPattern = regexp.MustCompile(`\b(runner|github|matrix|env|job|steps)(\.[A-Za-z0-9_-]+)+`)

// rewriteRefs wraps every context reference outside single-quoted strings
// in govaluate's bracket syntax: matrix.python-version becomes
// [matrix.python-version].
func rewriteRefs(text string) string {
	var out strings.Builder
	start := 0
	inString := false

	for i := 0; i < len(text); i++ {
		if text[i] != '\'' {
			continue
		}
		if inString {
			out.WriteString(text[start : i+1])
			start = i + 1
		} else {
			out.WriteString(refPattern.ReplaceAllString(text[start:i], "[$0]"))
			start = i
		}
		inString = !inString
	}

	if inString {
		// Unterminated string literal; the parser reports it.
		out.WriteString(text[start:])
		return out.String()
	}
	out.WriteString(refPattern.ReplaceAllString(text[start:], "[$0]"))
	return out.String()
}

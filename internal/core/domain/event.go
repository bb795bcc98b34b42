package domain

import (
	"path"
	"strings"
	"time"
)

// PushEvent describes the commit a run executes against. It is synthesized
// from the local repository head or from explicit command-line overrides.
type PushEvent struct {
	Ref       string
	SHA       string
	Actor     string
	RemoteURL string
	At        time.Time
}

// BranchName returns the branch component of the ref, or the ref itself when
// it does not carry the refs/heads/ prefix.
func (e PushEvent) BranchName() string {
	if b, ok := strings.CutPrefix(e.Ref, "refs/heads/"); ok {
		return b
	}
	return e.Ref
}

// IsTag reports whether the event ref points at a tag.
func (e PushEvent) IsTag() bool {
	return strings.HasPrefix(e.Ref, "refs/tags/")
}

// ShortSHA returns the abbreviated commit hash used in display output.
func (e PushEvent) ShortSHA() string {
	if len(e.SHA) > 12 {
		return e.SHA[:12]
	}
	return e.SHA
}

// matchAny reports whether name matches at least one glob pattern.
// Patterns use path.Match semantics; a literal "**" matches everything.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == "**" {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

package domain

import "strings"

// StepSnapshot is the per-step state visible to later steps through the
// steps context.
type StepSnapshot struct {
	Outcome Status
	Outputs map[string]string
}

// ExprScope carries the named contexts available to workflow expressions
// for one step evaluation. The zero value resolves every reference to "".
type ExprScope struct {
	// Workspace is the repository root that hashFiles patterns resolve
	// against.
	Workspace string

	Runner map[string]string
	GitHub map[string]string
	Matrix map[string]string
	Env    map[string]string

	// JobStatus is the job's status at the point of evaluation. It stays
	// succeeded until a step fails.
	JobStatus Status

	// Cancelled is set when the run context was cancelled.
	Cancelled bool

	Steps map[string]StepSnapshot
}

// Lookup resolves a dotted context reference such as "matrix.python-version"
// or "steps.install.outputs.cache-hit". Unknown references report false.
func (s ExprScope) Lookup(ref string) (string, bool) {
	ctx, rest, ok := strings.Cut(ref, ".")
	if !ok {
		return "", false
	}

	switch ctx {
	case "runner":
		v, ok := s.Runner[rest]
		return v, ok
	case "github":
		v, ok := s.GitHub[rest]
		return v, ok
	case "matrix":
		v, ok := s.Matrix[rest]
		return v, ok
	case "env":
		v, ok := s.Env[rest]
		return v, ok
	case "job":
		if rest == "status" {
			return string(s.JobStatus), true
		}
	case "steps":
		return s.lookupStep(rest)
	}
	return "", false
}

func (s ExprScope) lookupStep(ref string) (string, bool) {
	stepID, field, ok := strings.Cut(ref, ".")
	if !ok {
		return "", false
	}
	snap, ok := s.Steps[stepID]
	if !ok {
		return "", false
	}

	switch {
	case field == "outcome":
		return string(snap.Outcome), true
	case strings.HasPrefix(field, "outputs."):
		v, ok := snap.Outputs[strings.TrimPrefix(field, "outputs.")]
		return v, ok
	}
	return "", false
}

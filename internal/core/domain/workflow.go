package domain

import "strings"

// Workflow represents a single parsed workflow definition.
// It uses InternedString for fields that are frequently repeated to save memory.
type Workflow struct {
	Name   InternedString
	Source InternedString
	On     Trigger
	Env    map[string]string
	Jobs   map[string]Job
}

// Trigger describes the events a workflow reacts to.
type Trigger struct {
	Push *PushFilter
}

// PushFilter narrows push events by branch or tag glob patterns.
// An absent filter (nil) or one with no patterns matches every push.
type PushFilter struct {
	Branches []string
	Tags     []string
}

// Job represents one job within a workflow.
type Job struct {
	ID       InternedString
	Needs    []InternedString
	Strategy Strategy
	Env      map[string]string
	Steps    []Step
}

// Strategy controls matrix expansion and failure behavior for a job.
type Strategy struct {
	Matrix      []Axis
	FailFast    bool
	MaxParallel int
}

// Axis is one matrix dimension with its declared values.
type Axis struct {
	Name   string
	Values []string
}

// StepKind identifies which of the mutually exclusive step payloads is set.
type StepKind string

const (
	// StepKindRun executes a shell command.
	StepKindRun StepKind = "run"
	// StepKindCheckout provisions the repository source tree.
	StepKindCheckout StepKind = "checkout"
	// StepKindCache restores a dependency cache entry, saving it post-job on miss.
	StepKindCache StepKind = "cache"
	// StepKindSetup prepares toolchains for the remainder of the job.
	StepKindSetup StepKind = "setup"
)

// Step is a single unit of work inside a job. Exactly one of Run, Checkout,
// Cache, or Setup is populated; the loader enforces exclusivity.
type Step struct {
	ID         string
	Name       string
	If         string
	Env        map[string]string
	WorkingDir string
	Shell      string

	Run      string
	Checkout *CheckoutSpec
	Cache    *CacheSpec
	Setup    map[string]string
}

// CheckoutSpec configures a source checkout step.
type CheckoutSpec struct {
	Ref   string
	LFS   bool
	Clean bool
}

// CacheSpec configures a dependency cache step. Key is looked up exactly
// first; RestoreKeys are then tried in order as prefixes.
type CacheSpec struct {
	Paths       []string
	Key         string
	RestoreKeys []string
}

// Kind returns the step's kind based on which payload is set.
func (s *Step) Kind() StepKind {
	switch {
	case s.Checkout != nil:
		return StepKindCheckout
	case s.Cache != nil:
		return StepKindCache
	case s.Setup != nil:
		return StepKindSetup
	default:
		return StepKindRun
	}
}

// DisplayName returns the step name, deriving one from the payload when the
// definition leaves it empty.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind() {
	case StepKindCheckout:
		return "checkout"
	case StepKindCache:
		return "cache " + s.Cache.Key
	case StepKindSetup:
		return "setup"
	default:
		line := s.Run
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		return "run: " + line
	}
}

// MatchesPush reports whether a push event triggers this workflow.
func (t Trigger) MatchesPush(ev PushEvent) bool {
	if t.Push == nil {
		return false
	}
	return t.Push.Matches(ev)
}

// Matches applies the branch and tag patterns to the event ref.
//
// With no patterns at all, every push matches. Once a branch filter exists,
// tag pushes only match when a tag filter also admits them, and vice versa.
func (f *PushFilter) Matches(ev PushEvent) bool {
	if f == nil || (len(f.Branches) == 0 && len(f.Tags) == 0) {
		return true
	}
	if tag, ok := strings.CutPrefix(ev.Ref, "refs/tags/"); ok {
		return matchAny(f.Tags, tag)
	}
	return matchAny(f.Branches, ev.BranchName())
}

// Package config provides the workflow definition loader for gantry.
package config

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.WorkflowLoader = (*Loader)(nil)

// Loader implements ports.WorkflowLoader for YAML workflow files.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

var validJobIDRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// LoadDir discovers and loads every workflow under root's workflows
// directory, sorted by filename.
func (l *Loader) LoadDir(root string) ([]domain.Workflow, error) {
	dir := filepath.Join(root, domain.DefaultWorkflowsPath())

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zerr.With(domain.ErrNoWorkflows, "dir", dir)
		}
		return nil, zerr.Wrap(err, "failed to read workflows directory")
	}

	var workflows []domain.Workflow
	seen := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !isWorkflowFile(entry.Name()) {
			l.Logger.Debug(fmt.Sprintf("skipping non-workflow entry %s", entry.Name()))
			continue
		}

		wf, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if first, ok := seen[wf.Name.String()]; ok {
			dupErr := zerr.With(zerr.New("duplicate workflow name"), "name", wf.Name.String())
			dupErr = zerr.With(dupErr, "first_occurrence", first)
			return nil, zerr.With(dupErr, "duplicate_at", entry.Name())
		}
		seen[wf.Name.String()] = entry.Name()

		workflows = append(workflows, wf)
	}

	if len(workflows) == 0 {
		return nil, zerr.With(domain.ErrNoWorkflows, "dir", dir)
	}

	return workflows, nil
}

func isWorkflowFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yml" || ext == ".yaml"
}

// LoadFile loads and validates a single workflow file.
func (l *Loader) LoadFile(filePath string) (domain.Workflow, error) {
	// #nosec G304 -- path is provided by the user running the tool
	data, err := os.ReadFile(filePath)
	if err != nil {
		return domain.Workflow{}, zerr.Wrap(err, "failed to read workflow file")
	}

	var dto WorkflowDTO
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil {
		return domain.Workflow{}, zerr.With(zerr.Wrap(err, "failed to parse workflow file"), "path", filePath)
	}

	wf, err := buildWorkflow(filePath, &dto)
	if err != nil {
		return domain.Workflow{}, zerr.With(err, "path", filePath)
	}
	return wf, nil
}

func buildWorkflow(filePath string, dto *WorkflowDTO) (domain.Workflow, error) {
	name := dto.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	trigger, err := buildTrigger(dto.On)
	if err != nil {
		return domain.Workflow{}, err
	}

	if len(dto.Jobs) == 0 {
		return domain.Workflow{}, zerr.New("workflow defines no jobs")
	}

	// First pass: collect job ids to verify needs references later
	jobIDs := make(map[string]bool)
	for id := range dto.Jobs {
		jobIDs[id] = true
	}

	// Second pass: build and validate each job
	jobs := make(map[string]domain.Job, len(dto.Jobs))
	for id, jobDTO := range dto.Jobs {
		job, err := buildJob(id, jobDTO, jobIDs)
		if err != nil {
			return domain.Workflow{}, zerr.With(err, "job", id)
		}
		jobs[id] = job
	}

	return domain.Workflow{
		Name:   domain.NewInternedString(name),
		Source: domain.NewInternedString(filePath),
		On:     trigger,
		Env:    dto.Env,
		Jobs:   jobs,
	}, nil
}

func buildTrigger(dto *TriggerDTO) (domain.Trigger, error) {
	// An absent trigger means "any push".
	if dto == nil || dto.Push == nil {
		return domain.Trigger{Push: &domain.PushFilter{}}, nil
	}

	if err := validateFilterPatterns(dto.Push.Branches); err != nil {
		return domain.Trigger{}, err
	}
	if err := validateFilterPatterns(dto.Push.Tags); err != nil {
		return domain.Trigger{}, err
	}

	return domain.Trigger{Push: &domain.PushFilter{
		Branches: dto.Push.Branches,
		Tags:     dto.Push.Tags,
	}}, nil
}

// validateFilterPatterns rejects malformed trigger globs at load time.
func validateFilterPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if pattern == "**" {
			continue
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return zerr.With(zerr.Wrap(err, "invalid trigger pattern"), "pattern", pattern)
		}
	}
	return nil
}

func buildJob(id string, dto *JobDTO, jobIDs map[string]bool) (domain.Job, error) {
	if !validJobIDRegex.MatchString(id) {
		return domain.Job{}, zerr.With(zerr.New("invalid job id"), "job_id", id)
	}

	for _, need := range dto.Needs {
		if !jobIDs[need] {
			return domain.Job{}, zerr.With(domain.ErrMissingDependency, "needs", need)
		}
	}

	strategy, err := buildStrategy(dto.Strategy)
	if err != nil {
		return domain.Job{}, err
	}

	if len(dto.Steps) == 0 {
		return domain.Job{}, zerr.New("job defines no steps")
	}

	steps := make([]domain.Step, 0, len(dto.Steps))
	stepIDs := make(map[string]bool)
	for i, stepDTO := range dto.Steps {
		step, err := buildStep(stepDTO)
		if err != nil {
			return domain.Job{}, zerr.With(err, "step", i+1)
		}
		if step.ID != "" {
			if stepIDs[step.ID] {
				return domain.Job{}, zerr.With(zerr.New("duplicate step id"), "step_id", step.ID)
			}
			stepIDs[step.ID] = true
		}
		steps = append(steps, step)
	}

	return domain.Job{
		ID:       domain.NewInternedString(id),
		Needs:    domain.InternStrings(dto.Needs),
		Strategy: strategy,
		Env:      dto.Env,
		Steps:    steps,
	}, nil
}

func buildStrategy(dto *StrategyDTO) (domain.Strategy, error) {
	// fail-fast defaults to true
	strategy := domain.Strategy{FailFast: true}
	if dto == nil {
		return strategy, nil
	}

	if dto.FailFast != nil {
		strategy.FailFast = *dto.FailFast
	}
	if dto.MaxParallel < 0 {
		return domain.Strategy{}, zerr.New("max-parallel must not be negative")
	}
	strategy.MaxParallel = dto.MaxParallel

	axes := make([]domain.Axis, 0, len(dto.Matrix))
	for name, values := range dto.Matrix {
		if len(values) == 0 {
			return domain.Strategy{}, zerr.With(zerr.New("matrix axis has no values"), "axis", name)
		}
		axes = append(axes, domain.Axis{Name: name, Values: values})
	}

	// Axes sorted by name keep matrix expansion deterministic; values keep
	// their declared order.
	slices.SortFunc(axes, func(a, b domain.Axis) int {
		return cmp.Compare(a.Name, b.Name)
	})
	strategy.Matrix = axes

	return strategy, nil
}

func buildStep(dto *StepDTO) (domain.Step, error) {
	step := domain.Step{
		ID:         dto.ID,
		Name:       dto.Name,
		If:         dto.If,
		Env:        dto.Env,
		WorkingDir: dto.WorkingDir,
		Shell:      dto.Shell,
		Run:        dto.Run,
	}

	kinds := 0
	if dto.Run != "" {
		kinds++
	}
	if dto.Checkout != nil {
		kinds++
		step.Checkout = &domain.CheckoutSpec{
			Ref:   dto.Checkout.Ref,
			LFS:   dto.Checkout.LFS,
			Clean: dto.Checkout.Clean,
		}
	}
	if dto.Cache != nil {
		kinds++
		cache, err := buildCache(dto.Cache)
		if err != nil {
			return domain.Step{}, err
		}
		step.Cache = cache
	}
	if dto.Setup != nil {
		if len(dto.Setup) == 0 {
			return domain.Step{}, zerr.New("setup step lists no tools")
		}
		kinds++
		step.Setup = dto.Setup
	}

	if kinds == 0 {
		return domain.Step{}, zerr.New("step defines no action")
	}
	if kinds > 1 {
		return domain.Step{}, zerr.New("step defines more than one action")
	}

	return step, nil
}

func buildCache(dto *CacheDTO) (*domain.CacheSpec, error) {
	if dto.Key == "" {
		return nil, zerr.New("cache step requires a key")
	}
	if len(dto.Paths) == 0 {
		return nil, zerr.New("cache step requires paths")
	}
	return &domain.CacheSpec{
		Paths:       canonicalizePaths(dto.Paths),
		Key:         dto.Key,
		RestoreKeys: dto.RestoreKeys,
	}, nil
}

// canonicalizePaths sorts and deduplicates cache paths.
func canonicalizePaths(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// strictDecode re-decodes a node with unknown fields rejected, since a nested
// yaml.Node decode does not inherit KnownFields from the outer decoder.
func strictDecode(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

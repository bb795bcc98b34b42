// Package runner executes single job instances: the sequential step loop
// with condition evaluation, the builtin step kinds, and the post-job cache
// save phase.
package runner

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/zerr"
)

// RunContext carries the per-run inputs shared by every job instance of one
// triggered workflow.
type RunContext struct {
	// Workspace is the repository root steps execute in.
	Workspace string

	Event        domain.PushEvent
	WorkflowName string

	// WorkflowEnv is the workflow-level env block, uninterpolated.
	WorkflowEnv map[string]string

	// Events receives the run event stream. Must not be nil.
	Events ports.EventSink

	// NoCache disables cache restores and saves for the whole run.
	NoCache bool

	// CacheScope namespaces cache entries per repository.
	CacheScope string
}

// Runner executes one job instance at a time. Instances are independent, so
// the scheduler may drive several RunJob calls concurrently.
type Runner struct {
	executor  ports.Executor
	scm       ports.SourceControl
	cache     ports.CacheStore
	envs      ports.EnvironmentFactory
	evaluator ports.Evaluator
	telemetry ports.Telemetry
	logger    ports.Logger
}

// NewRunner creates a new Runner.
func NewRunner(
	executor ports.Executor,
	scm ports.SourceControl,
	cache ports.CacheStore,
	envs ports.EnvironmentFactory,
	evaluator ports.Evaluator,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Runner {
	return &Runner{
		executor:  executor,
		scm:       scm,
		cache:     cache,
		envs:      envs,
		evaluator: evaluator,
		telemetry: telemetry,
		logger:    logger,
	}
}

// jobState is the mutable context a job's steps share: the status later
// conditions observe, toolchain fragments from setup steps, env file
// overrides, step snapshots, and cache saves deferred to the post phase.
type jobState struct {
	status      domain.Status
	workflowEnv map[string]string
	jobEnv      map[string]string
	fileEnv     map[string]string
	toolchain   []string
	steps       map[string]domain.StepSnapshot
	saves       []pendingSave
}

type pendingSave struct {
	key   string
	paths []string
}

// RunJob executes every step of the instance in order and returns the
// result. Failures are captured in the result, never returned: the first
// failing step flips the job status, and later steps only run when their
// condition still admits them.
func (r *Runner) RunJob(ctx context.Context, rc RunContext, inst domain.JobInstance) domain.JobResult {
	start := time.Now()
	jobCtx, vertex := r.telemetry.Record(ctx, inst.Key.String())

	rc.Events.Emit(domain.EventJobStarted, map[string]any{
		"workflow": rc.WorkflowName,
		"job":      inst.JobID.String(),
		"instance": inst.Key.String(),
	})

	result := domain.JobResult{
		Instance: inst.Key.String(),
		JobID:    inst.JobID.String(),
	}

	st, err := r.newJobState(rc, inst)
	if err != nil {
		st = &jobState{status: domain.StatusFailed}
		r.logger.Error(zerr.With(err, "instance", inst.Key.String()))
	} else {
		for i := range inst.Job.Steps {
			stepResult := r.runStep(jobCtx, rc, inst, st, &inst.Job.Steps[i])
			result.Steps = append(result.Steps, stepResult)
			if stepResult.Conclusion == domain.StatusFailed {
				st.status = domain.StatusFailed
			}
		}
	}
	result.Conclusion = st.status

	r.savePending(jobCtx, rc, st)

	result.Duration = time.Since(start)
	var jobErr error
	if result.Conclusion == domain.StatusFailed {
		jobErr = zerr.New("job failed")
	}
	vertex.Complete(jobErr)

	rc.Events.Emit(domain.EventJobFinished, map[string]any{
		"workflow":    rc.WorkflowName,
		"job":         inst.JobID.String(),
		"instance":    inst.Key.String(),
		"conclusion":  string(result.Conclusion),
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result
}

// newJobState interpolates the workflow and job env blocks once up front.
// Their values may reference the matrix and github contexts but not env
// itself.
func (r *Runner) newJobState(rc RunContext, inst domain.JobInstance) (*jobState, error) {
	st := &jobState{
		status:  domain.StatusSucceeded,
		fileEnv: make(map[string]string),
		steps:   make(map[string]domain.StepSnapshot),
	}

	base := r.scope(rc, inst, st, nil)
	workflowEnv, err := r.interpolateMap(rc.WorkflowEnv, base)
	if err != nil {
		return nil, zerr.Wrap(err, "workflow env interpolation failed")
	}
	jobEnv, err := r.interpolateMap(inst.Job.Env, base)
	if err != nil {
		return nil, zerr.Wrap(err, "job env interpolation failed")
	}
	st.workflowEnv = workflowEnv
	st.jobEnv = jobEnv
	return st, nil
}

// runStep evaluates the step condition and executes the step when it admits.
// A broken condition fails the step rather than silently running it.
func (r *Runner) runStep(ctx context.Context, rc RunContext, inst domain.JobInstance, st *jobState, step *domain.Step) domain.StepResult {
	start := time.Now()
	result := domain.StepResult{Name: step.DisplayName(), ID: step.ID}

	scope := r.scope(rc, inst, st, nil)
	scope.Cancelled = ctx.Err() != nil

	proceed, err := r.evaluator.Condition(step.If, scope)
	switch {
	case err != nil:
		result.Conclusion = domain.StatusFailed
		result.Err = err.Error()
		r.logger.Error(zerr.With(zerr.Wrap(err, "step condition failed"), "step", result.Name))
	case !proceed:
		result.Conclusion = domain.StatusSkipped
	default:
		result = r.executeStep(ctx, rc, inst, st, step, scope, result)
	}

	result.Duration = time.Since(start)

	if step.ID != "" {
		st.steps[step.ID] = domain.StepSnapshot{Outcome: result.Conclusion, Outputs: result.Outputs}
	}

	payload := map[string]any{
		"workflow":    rc.WorkflowName,
		"instance":    inst.Key.String(),
		"step":        result.Name,
		"conclusion":  string(result.Conclusion),
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Err != "" {
		payload["error"] = result.Err
	}
	if hit, ok := result.Outputs["cache-hit"]; ok {
		payload["cache_hit"] = hit == "true"
	}
	rc.Events.Emit(domain.EventStepFinished, payload)

	return result
}

// executeStep records the step vertex, interpolates the step env, and
// dispatches on the step kind.
func (r *Runner) executeStep(ctx context.Context, rc RunContext, inst domain.JobInstance, st *jobState, step *domain.Step, scope domain.ExprScope, result domain.StepResult) domain.StepResult {
	rc.Events.Emit(domain.EventStepStarted, map[string]any{
		"workflow": rc.WorkflowName,
		"instance": inst.Key.String(),
		"step":     result.Name,
		"kind":     string(step.Kind()),
	})
	stepCtx, vertex := r.telemetry.Record(ctx, inst.Key.String()+": "+result.Name)

	stepEnv, err := r.interpolateMap(step.Env, scope)
	if err == nil {
		scope = r.scope(rc, inst, st, stepEnv)
		scope.Cancelled = stepCtx.Err() != nil

		switch step.Kind() {
		case domain.StepKindCheckout:
			err = r.runCheckout(stepCtx, rc, step, scope)
		case domain.StepKindSetup:
			err = r.runSetup(stepCtx, st, step, scope)
		case domain.StepKindCache:
			result.Outputs, err = r.runCache(stepCtx, rc, st, step, scope, vertex)
		default:
			err = r.runCommand(stepCtx, rc, st, step, scope, stepEnv)
		}
	}

	if err != nil {
		result.Conclusion = domain.StatusFailed
		result.Err = err.Error()
		r.logger.Error(zerr.With(zerr.With(zerr.Wrap(err, "step failed"), "step", result.Name), "instance", inst.Key.String()))
	} else {
		result.Conclusion = domain.StatusSucceeded
	}
	vertex.Complete(err)
	return result
}

func (r *Runner) runCheckout(ctx context.Context, rc RunContext, step *domain.Step, scope domain.ExprScope) error {
	ref, err := r.evaluator.Interpolate(step.Checkout.Ref, scope)
	if err != nil {
		return err
	}
	return r.scm.Checkout(ctx, rc.Workspace, domain.CheckoutSpec{
		Ref:   ref,
		LFS:   step.Checkout.LFS,
		Clean: step.Checkout.Clean,
	})
}

// runSetup resolves the requested tools and keeps their env fragments for
// the remainder of the job.
func (r *Runner) runSetup(ctx context.Context, st *jobState, step *domain.Step, scope domain.ExprScope) error {
	tools := make(map[string]string, len(step.Setup))
	for alias, spec := range step.Setup {
		version, err := r.evaluator.Interpolate(spec, scope)
		if err != nil {
			return zerr.With(err, "tool", alias)
		}
		tools[alias] = version
	}

	fragment, err := r.envs.GetEnvironment(ctx, tools)
	if err != nil {
		return err
	}
	st.toolchain = append(st.toolchain, fragment...)
	return nil
}

// runCache restores at the step position and queues a save for the post
// phase when the exact key missed. The cache-hit output reports an exact
// match only, restore-key fallbacks included.
func (r *Runner) runCache(ctx context.Context, rc RunContext, st *jobState, step *domain.Step, scope domain.ExprScope, vertex ports.Vertex) (map[string]string, error) {
	key, err := r.evaluator.Interpolate(step.Cache.Key, scope)
	if err != nil {
		return nil, err
	}
	restoreKeys := make([]string, 0, len(step.Cache.RestoreKeys))
	for _, rk := range step.Cache.RestoreKeys {
		interpolated, err := r.evaluator.Interpolate(rk, scope)
		if err != nil {
			return nil, err
		}
		restoreKeys = append(restoreKeys, interpolated)
	}
	paths := make([]string, 0, len(step.Cache.Paths))
	for _, p := range step.Cache.Paths {
		interpolated, err := r.evaluator.Interpolate(p, scope)
		if err != nil {
			return nil, err
		}
		resolved, err := resolveCachePath(rc.Workspace, interpolated)
		if err != nil {
			return nil, err
		}
		paths = append(paths, resolved)
	}

	outputs := map[string]string{"cache-hit": "false"}
	if rc.NoCache {
		r.logger.Debug(fmt.Sprintf("cache disabled, skipping restore of %s", key))
		return outputs, nil
	}

	restored, err := r.cache.Restore(ctx, rc.CacheScope, key, restoreKeys, paths)
	if err != nil {
		return nil, err
	}
	outputs["cache-hit"] = strconv.FormatBool(restored.Exact)

	switch {
	case restored.Exact:
		vertex.Cached()
	case restored.Hit():
		r.logger.Info(fmt.Sprintf("cache restored from fallback key %s", restored.Key))
		st.saves = append(st.saves, pendingSave{key: key, paths: paths})
	default:
		st.saves = append(st.saves, pendingSave{key: key, paths: paths})
	}
	return outputs, nil
}

// runCommand executes a run step through the shell executor with the merged
// environment: system, then toolchain (PATH prepends), then workflow, job,
// env file, and step overlays.
func (r *Runner) runCommand(ctx context.Context, rc RunContext, st *jobState, step *domain.Step, scope domain.ExprScope, stepEnv map[string]string) error {
	command, err := r.evaluator.Interpolate(step.Run, scope)
	if err != nil {
		return err
	}
	dir, err := r.evaluator.Interpolate(step.WorkingDir, scope)
	if err != nil {
		return err
	}
	switch {
	case dir == "":
		dir = rc.Workspace
	case !filepath.IsAbs(dir):
		dir = filepath.Join(rc.Workspace, dir)
	}

	envFile, err := os.CreateTemp("", "gantry-env-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create step env file")
	}
	envPath := envFile.Name()
	if err := envFile.Close(); err != nil {
		return zerr.Wrap(err, "failed to create step env file")
	}
	defer os.Remove(envPath)

	env := domain.MergeEnv(os.Environ(), st.toolchain,
		st.workflowEnv, st.jobEnv, st.fileEnv, stepEnv,
		map[string]string{"GANTRY_ENV": envPath},
	)

	execErr := r.executor.Execute(ctx, ports.ExecSpec{
		Command: command,
		Shell:   step.Shell,
		Dir:     dir,
		Env:     env,
	})

	// Env file writes apply to later steps even when this command failed.
	if data, err := os.ReadFile(envPath); err == nil && len(data) > 0 {
		maps.Copy(st.fileEnv, domain.ParseEnvLines(data))
	}

	return execErr
}

// resolveCachePath anchors one cache path: ~ expands to the user home and
// relative paths resolve against the workspace.
func resolveCachePath(workspace, path string) (string, error) {
	switch {
	case path == "":
		return "", nil
	case path == "~" || strings.HasPrefix(path, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", zerr.Wrap(err, "cannot expand ~ in cache path")
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	case filepath.IsAbs(path):
		return path, nil
	default:
		return filepath.Join(workspace, path), nil
	}
}

// savePending persists cache entries whose exact key missed. Saves run in
// reverse step order and only after a fully successful job.
func (r *Runner) savePending(ctx context.Context, rc RunContext, st *jobState) {
	if st.status != domain.StatusSucceeded || rc.NoCache {
		return
	}
	for i := len(st.saves) - 1; i >= 0; i-- {
		save := st.saves[i]
		if err := r.cache.Save(ctx, rc.CacheScope, save.key, save.paths); err != nil {
			r.logger.Warn(fmt.Sprintf("cache save for key %s failed: %v", save.key, err))
		}
	}
}

// scope assembles the expression contexts visible to one evaluation.
func (r *Runner) scope(rc RunContext, inst domain.JobInstance, st *jobState, stepEnv map[string]string) domain.ExprScope {
	matrix := make(map[string]string, len(inst.Selection))
	for _, av := range inst.Selection {
		matrix[av.Axis] = av.Value
	}

	env := make(map[string]string)
	maps.Copy(env, st.workflowEnv)
	maps.Copy(env, st.jobEnv)
	maps.Copy(env, st.fileEnv)
	maps.Copy(env, stepEnv)

	return domain.ExprScope{
		Workspace: rc.Workspace,
		Runner: map[string]string{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
			"temp": os.TempDir(),
		},
		GitHub: map[string]string{
			"ref":        rc.Event.Ref,
			"branch":     rc.Event.BranchName(),
			"sha":        rc.Event.SHA,
			"actor":      rc.Event.Actor,
			"event_name": "push",
		},
		Matrix:    matrix,
		Env:       env,
		JobStatus: st.status,
		Steps:     st.steps,
	}
}

func (r *Runner) interpolateMap(src map[string]string, scope domain.ExprScope) (map[string]string, error) {
	if len(src) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		interpolated, err := r.evaluator.Interpolate(v, scope)
		if err != nil {
			return nil, zerr.With(err, "key", k)
		}
		out[k] = interpolated
	}
	return out, nil
}

// Package app implements the application layer for gantry: it turns CLI
// invocations into planned and executed workflow runs.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.trai.ch/gantry/internal/adapters/events"
	"go.trai.ch/gantry/internal/adapters/watcher"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/planner"
	"go.trai.ch/gantry/internal/engine/runner"
	"go.trai.ch/gantry/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// Emit modes for the run event stream.
const (
	EmitNone   = "none"
	EmitNDJSON = "ndjson"
)

// App represents the main application logic.
type App struct {
	loader    ports.WorkflowLoader
	planner   *planner.Planner
	scheduler *scheduler.Scheduler
	scm       ports.SourceControl
	cache     ports.CacheStore
	reporter  ports.StatusReporter
	watcher   ports.Watcher
	logger    ports.Logger
	stdout    io.Writer
}

// New creates a new App instance.
func New(
	loader ports.WorkflowLoader,
	plan *planner.Planner,
	sched *scheduler.Scheduler,
	scm ports.SourceControl,
	cache ports.CacheStore,
	reporter ports.StatusReporter,
	watch ports.Watcher,
	log ports.Logger,
) *App {
	return &App{
		loader:    loader,
		planner:   plan,
		scheduler: sched,
		scm:       scm,
		cache:     cache,
		reporter:  reporter,
		watcher:   watch,
		logger:    log,
		stdout:    os.Stdout,
	}
}

// WithStdout redirects plan and event output. Primarily used for testing.
func (a *App) WithStdout(w io.Writer) *App {
	a.stdout = w
	return a
}

// RunOptions configures one run invocation.
type RunOptions struct {
	// Workspace is the repository root. Empty means the current directory.
	Workspace string

	// Workflows filters the run to the named workflows. Empty means all
	// discovered ones.
	Workflows []string

	// Ref, SHA, Branch, and Actor override the synthesized push event.
	Ref    string
	SHA    string
	Branch string
	Actor  string

	// Parallelism bounds concurrent job instances. Values below one mean
	// one worker per CPU.
	Parallelism int

	// Emit selects the event stream mode ("none" or "ndjson" on stdout);
	// EmitFile streams NDJSON to a file instead.
	Emit     string
	EmitFile string

	// ReportStatus pushes a commit status per executed workflow.
	ReportStatus bool

	// NoCache disables dependency cache restores and saves.
	NoCache bool

	// DryRun prints the plan without executing anything.
	DryRun bool

	// MaxEventAge rejects head commits older than this. Zero disables the
	// guard.
	MaxEventAge time.Duration
}

// Run loads workflows, synthesizes the push event, and executes every
// triggered workflow. It returns domain.ErrRunFailed when any job failed.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	workspace, err := filepath.Abs(cmp.Or(opts.Workspace, "."))
	if err != nil {
		return zerr.Wrap(err, "failed to resolve workspace")
	}

	workflows, err := a.selectWorkflows(workspace, opts.Workflows)
	if err != nil {
		return err
	}

	event, err := a.buildEvent(ctx, workspace, opts)
	if err != nil {
		return err
	}

	if opts.MaxEventAge > 0 && !event.At.IsZero() {
		if age := time.Since(event.At); age > opts.MaxEventAge {
			staleErr := zerr.With(domain.ErrStaleEvent, "age", age.Truncate(time.Second).String())
			return zerr.With(staleErr, "max_age", opts.MaxEventAge.String())
		}
	}

	sink, err := a.buildSink(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			a.logger.Warn(fmt.Sprintf("failed to close event sink: %v", cerr))
		}
	}()

	a.logger.Info(fmt.Sprintf("push %s at %s", event.Ref, event.ShortSHA()))
	sink.Emit(domain.EventRunStarted, map[string]any{
		"ref":       event.Ref,
		"sha":       event.SHA,
		"workflows": len(workflows),
	})

	var results []domain.RunResult
	for _, wf := range workflows {
		plan, matched, err := a.planner.Plan(wf, event)
		if err != nil {
			return zerr.Wrap(err, "planning failed")
		}
		if !matched {
			a.logger.Info(fmt.Sprintf("workflow %s skipped: trigger does not match %s",
				wf.Name.String(), event.Ref))
			sink.Emit(domain.EventWorkflowSkipped, map[string]any{
				"workflow": wf.Name.String(),
				"ref":      event.Ref,
			})
			continue
		}

		if opts.DryRun {
			a.printPlan(plan)
			continue
		}

		rc := runner.RunContext{
			Workspace:    workspace,
			Event:        event,
			WorkflowName: wf.Name.String(),
			WorkflowEnv:  wf.Env,
			Events:       sink,
			NoCache:      opts.NoCache,
			CacheScope:   domain.CacheScope(workspace),
		}
		result := a.scheduler.Run(ctx, rc, plan.Graph, opts.Parallelism)
		a.logResult(&result)
		a.report(ctx, opts, event, &result)
		results = append(results, result)
	}

	failed := false
	for i := range results {
		if results[i].Conclusion == domain.StatusFailed {
			failed = true
		}
	}

	exitCode := 0
	if failed {
		exitCode = 1
	}
	sink.Emit(domain.EventRunFinished, map[string]any{
		"exit_code": exitCode,
		"failed":    failed,
	})

	if failed {
		return domain.ErrRunFailed
	}
	return nil
}

// Watch runs the selected workflows once, then reruns them whenever a
// settled batch of file changes lands in the workspace. Each batch counts
// as a fresh push of the current head.
func (a *App) Watch(ctx context.Context, opts RunOptions) error {
	workspace, err := filepath.Abs(cmp.Or(opts.Workspace, "."))
	if err != nil {
		return zerr.Wrap(err, "failed to resolve workspace")
	}

	// Runs never overlap; batches landing during a run queue up behind it.
	var runMu sync.Mutex
	runOnce := func() {
		runMu.Lock()
		defer runMu.Unlock()

		switch err := a.Run(ctx, opts); {
		case err == nil:
		case errors.Is(err, domain.ErrRunFailed):
			a.logger.Warn("run failed, watching for changes")
		case ctx.Err() != nil:
		default:
			a.logger.Error(zerr.Wrap(err, "run aborted"))
		}
	}

	runOnce()

	debouncer := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		a.logger.Info(fmt.Sprintf("%d paths changed, rerunning", len(paths)))
		runOnce()
	})

	if err := a.watcher.Start(ctx, workspace); err != nil {
		return zerr.Wrap(err, "failed to start file watcher")
	}
	defer func() {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to stop file watcher: %v", err))
		}
	}()

	a.logger.Info(fmt.Sprintf("watching %s", workspace))
	for ev := range a.watcher.Events() {
		debouncer.Add(ev.Path)
	}
	return nil
}

// WorkflowSummary describes one loaded workflow for the list surface.
type WorkflowSummary struct {
	Name     string       `json:"name"`
	Source   string       `json:"source"`
	Branches []string     `json:"branches,omitzero"`
	Tags     []string     `json:"tags,omitzero"`
	Jobs     []JobSummary `json:"jobs"`
}

// JobSummary describes one job of a listed workflow.
type JobSummary struct {
	ID        string              `json:"id"`
	Needs     []string            `json:"needs,omitzero"`
	Matrix    map[string][]string `json:"matrix,omitzero"`
	Steps     int                 `json:"steps"`
	Instances int                 `json:"instances"`
}

// List loads all workflows under the workspace and summarizes them.
func (a *App) List(_ context.Context, workspace string) ([]WorkflowSummary, error) {
	root, err := filepath.Abs(cmp.Or(workspace, "."))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve workspace")
	}

	workflows, err := a.loader.LoadDir(root)
	if err != nil {
		return nil, err
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summary := WorkflowSummary{
			Name:   wf.Name.String(),
			Source: wf.Source.String(),
		}
		if wf.On.Push != nil {
			summary.Branches = wf.On.Push.Branches
			summary.Tags = wf.On.Push.Tags
		}

		jobIDs := make([]string, 0, len(wf.Jobs))
		for id := range wf.Jobs {
			jobIDs = append(jobIDs, id)
		}
		slices.Sort(jobIDs)

		for _, id := range jobIDs {
			job := wf.Jobs[id]
			js := JobSummary{
				ID:        id,
				Steps:     len(job.Steps),
				Instances: len(domain.ExpandMatrix(job.Strategy.Matrix)),
			}
			for _, need := range job.Needs {
				js.Needs = append(js.Needs, need.String())
			}
			if len(job.Strategy.Matrix) > 0 {
				js.Matrix = make(map[string][]string, len(job.Strategy.Matrix))
				for _, axis := range job.Strategy.Matrix {
					js.Matrix[axis.Name] = axis.Values
				}
			}
			summary.Jobs = append(summary.Jobs, js)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// CacheInfo summarizes the dependency cache store.
type CacheInfo struct {
	Entries   []domain.CacheEntry `json:"entries"`
	TotalSize int64               `json:"total_size"`
}

// CacheInfo lists all stored cache entries and their total size.
func (a *App) CacheInfo(_ context.Context) (CacheInfo, error) {
	entries, err := a.cache.Entries()
	if err != nil {
		return CacheInfo{}, err
	}

	info := CacheInfo{Entries: entries}
	for _, e := range entries {
		info.TotalSize += e.Size
	}
	return info, nil
}

// CacheClean removes all stored cache entries and returns the bytes freed.
func (a *App) CacheClean(_ context.Context) (int64, error) {
	freed, err := a.cache.Clean()
	if err != nil {
		return 0, err
	}
	a.logger.Info(fmt.Sprintf("cache cleaned, %d bytes freed", freed))
	return freed, nil
}

// selectWorkflows loads all workflows and filters them by name when the
// invocation asked for specific ones.
func (a *App) selectWorkflows(workspace string, names []string) ([]domain.Workflow, error) {
	workflows, err := a.loader.LoadDir(workspace)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return workflows, nil
	}

	byName := make(map[string]domain.Workflow, len(workflows))
	for _, wf := range workflows {
		byName[wf.Name.String()] = wf
	}

	selected := make([]domain.Workflow, 0, len(names))
	for _, name := range names {
		wf, ok := byName[name]
		if !ok {
			return nil, zerr.With(domain.ErrWorkflowNotFound, "workflow", name)
		}
		selected = append(selected, wf)
	}
	return selected, nil
}

// buildEvent synthesizes the push event from the repository head and applies
// the command-line overrides. With both a ref (or branch) and a SHA given,
// a missing repository is tolerated and the event is fully synthetic.
func (a *App) buildEvent(ctx context.Context, workspace string, opts RunOptions) (domain.PushEvent, error) {
	event, err := a.scm.DescribeHead(ctx, workspace)
	if err != nil {
		if (opts.Ref == "" && opts.Branch == "") || opts.SHA == "" {
			return domain.PushEvent{}, err
		}
		a.logger.Warn(fmt.Sprintf("could not describe repository head, using overrides only: %v", err))
		event = domain.PushEvent{At: time.Now()}
	}

	if opts.Branch != "" {
		event.Ref = "refs/heads/" + opts.Branch
	}
	if opts.Ref != "" {
		event.Ref = opts.Ref
	}
	if opts.SHA != "" {
		event.SHA = opts.SHA
	}
	if opts.Actor != "" {
		event.Actor = opts.Actor
	}
	return event, nil
}

func (a *App) buildSink(opts RunOptions) (ports.EventSink, error) {
	switch {
	case opts.EmitFile != "":
		return events.NewFileSink(opts.EmitFile, a.logger)
	case opts.Emit == EmitNDJSON:
		return events.NewSink(a.stdout, a.logger), nil
	case opts.Emit == "" || opts.Emit == EmitNone:
		return events.NewNoop(), nil
	default:
		return nil, zerr.With(zerr.New("unknown emit mode"), "mode", opts.Emit)
	}
}

// printPlan renders a dry-run plan, one instance per line in execution
// order.
func (a *App) printPlan(plan *planner.Plan) {
	fmt.Fprintf(a.stdout, "workflow %s (%s)\n", plan.Workflow.Name.String(), plan.Event.Ref)
	for _, inst := range plan.Instances() {
		if len(inst.Needs) == 0 {
			fmt.Fprintf(a.stdout, "  %s\n", inst.Key.String())
			continue
		}
		needs := make([]string, len(inst.Needs))
		for i, n := range inst.Needs {
			needs[i] = n.String()
		}
		fmt.Fprintf(a.stdout, "  %s  needs: %s\n", inst.Key.String(), strings.Join(needs, ", "))
	}
}

func (a *App) logResult(result *domain.RunResult) {
	msg := fmt.Sprintf("workflow %s %s in %s",
		result.Workflow, result.Conclusion, result.Duration.Truncate(time.Millisecond))
	if result.Conclusion == domain.StatusFailed {
		a.logger.Error(zerr.New(msg))
		return
	}
	a.logger.Info(msg)
}

// report pushes the commit status when asked to. Reporting is best-effort;
// the run's own conclusion stays authoritative.
func (a *App) report(ctx context.Context, opts RunOptions, ev domain.PushEvent, result *domain.RunResult) {
	if !opts.ReportStatus {
		return
	}
	if err := a.reporter.Report(ctx, ev, result); err != nil {
		a.logger.Warn(fmt.Sprintf("status report for %s failed: %v", result.Workflow, err))
	}
}

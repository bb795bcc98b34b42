// Package scheduler drives bounded parallel execution over the job instance
// graph of one planned workflow run.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/engine/runner"
)

// JobRunner executes a single job instance to completion.
type JobRunner interface {
	RunJob(ctx context.Context, rc runner.RunContext, inst domain.JobInstance) domain.JobResult
}

// Scheduler executes planned job instances with bounded parallelism,
// honoring needs ordering, fail-fast matrix groups, and per-job max-parallel
// caps.
type Scheduler struct {
	runner JobRunner
	logger ports.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(r JobRunner, logger ports.Logger) *Scheduler {
	return &Scheduler{runner: r, logger: logger}
}

// Run executes every instance of the graph and returns the run result. A
// failing instance never aborts the run as a whole; its dependents are
// skipped, and under fail-fast so are its pending matrix siblings.
// Parallelism values below one mean one worker per CPU.
func (s *Scheduler) Run(ctx context.Context, rc runner.RunContext, graph *domain.Graph, parallelism int) domain.RunResult {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	start := time.Now()
	state := s.newRunState(ctx, rc, graph, parallelism)

	for !state.done() {
		state.schedule()

		if state.done() {
			break
		}
		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		// Once cancelled, only draining results makes progress; a nil
		// channel keeps the select from spinning on Done.
		var cancelled <-chan struct{}
		if state.ctx.Err() == nil {
			cancelled = state.ctx.Done()
		}
		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-cancelled:
		}
	}

	return state.buildResult(start)
}

type result struct {
	instance domain.InternedString
	res      domain.JobResult
}

type runState struct {
	graph       *domain.Graph
	inDegree    map[domain.InternedString]int
	ready       []domain.InternedString
	active      int
	activeByJob map[domain.InternedString]int
	resultsCh   chan result
	results     map[domain.InternedString]domain.JobResult
	failedJobs  map[domain.InternedString]bool
	ctx         context.Context
	rc          runner.RunContext
	parallelism int
	s           *Scheduler
}

func (s *Scheduler) newRunState(ctx context.Context, rc runner.RunContext, graph *domain.Graph, parallelism int) *runState {
	count := graph.Count()
	inDegree := make(map[domain.InternedString]int, count)
	var ready []domain.InternedString

	// Walk order keeps the initial ready queue deterministic.
	for inst := range graph.Walk() {
		inDegree[inst.Key] = len(inst.Needs)
		if len(inst.Needs) == 0 {
			ready = append(ready, inst.Key)
		}
	}

	return &runState{
		graph:       graph,
		inDegree:    inDegree,
		ready:       ready,
		activeByJob: make(map[domain.InternedString]int),
		resultsCh:   make(chan result, parallelism),
		results:     make(map[domain.InternedString]domain.JobResult, count),
		failedJobs:  make(map[domain.InternedString]bool),
		ctx:         ctx,
		rc:          rc,
		parallelism: parallelism,
		s:           s,
	}
}

func (state *runState) done() bool {
	return state.active == 0 && len(state.ready) == 0
}

// schedule drains the ready queue: skippable instances finish immediately,
// startable ones launch, and instances blocked by a parallelism cap wait for
// the next result. Skipping can unblock dependents, so those feed back into
// the same pass.
func (state *runState) schedule() {
	queue := state.ready
	state.ready = nil

	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]

		inst, ok := state.graph.Get(key)
		if !ok {
			continue
		}

		if reason, skip := state.skipReason(inst); skip {
			state.finishSkipped(inst, reason)
			queue = append(queue, state.release(key)...)
			continue
		}
		if state.ctx.Err() != nil || !state.canStart(inst) {
			state.ready = append(state.ready, key)
			continue
		}
		state.start(inst)
	}
}

// skipReason decides whether an instance popped from the ready queue must
// not run: an unsuccessful needed job, or a failed matrix sibling under
// fail-fast.
func (state *runState) skipReason(inst domain.JobInstance) (string, bool) {
	for _, need := range inst.Needs {
		if res, ok := state.results[need]; ok && res.Conclusion != domain.StatusSucceeded {
			return fmt.Sprintf("needed job %s %s", need.String(), res.Conclusion), true
		}
	}
	if inst.Job.Strategy.FailFast && state.failedJobs[inst.JobID] {
		return "a matrix sibling failed with fail-fast set", true
	}
	return "", false
}

func (state *runState) canStart(inst domain.JobInstance) bool {
	if state.active >= state.parallelism {
		return false
	}
	maxPar := inst.Job.Strategy.MaxParallel
	return maxPar <= 0 || state.activeByJob[inst.JobID] < maxPar
}

func (state *runState) start(inst domain.JobInstance) {
	state.active++
	state.activeByJob[inst.JobID]++

	go func() {
		state.resultsCh <- result{
			instance: inst.Key,
			res:      state.s.runner.RunJob(state.ctx, state.rc, inst),
		}
	}()
}

func (state *runState) handleResult(res result) {
	state.active--
	state.results[res.instance] = res.res

	inst, ok := state.graph.Get(res.instance)
	if !ok {
		return
	}
	state.activeByJob[inst.JobID]--

	if res.res.Conclusion == domain.StatusFailed {
		state.failedJobs[inst.JobID] = true
		state.s.logger.Debug(fmt.Sprintf("job %s failed", inst.Key.String()))
	}

	state.ready = append(state.ready, state.release(res.instance)...)
}

// release decrements the in-degree of every dependent and returns the ones
// that became ready.
func (state *runState) release(key domain.InternedString) []domain.InternedString {
	var unblocked []domain.InternedString
	for _, dep := range state.graph.Dependents(key) {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			unblocked = append(unblocked, dep)
		}
	}
	return unblocked
}

// finishSkipped records a terminal skipped result without launching the
// instance. The event stream still sees every instance conclude.
func (state *runState) finishSkipped(inst domain.JobInstance, reason string) {
	state.s.logger.Info(fmt.Sprintf("skipping %s: %s", inst.Key.String(), reason))
	state.results[inst.Key] = domain.JobResult{
		Instance:   inst.Key.String(),
		JobID:      inst.JobID.String(),
		Conclusion: domain.StatusSkipped,
	}
	state.rc.Events.Emit(domain.EventJobFinished, map[string]any{
		"workflow":   state.rc.WorkflowName,
		"job":        inst.JobID.String(),
		"instance":   inst.Key.String(),
		"conclusion": string(domain.StatusSkipped),
		"reason":     reason,
	})
}

// buildResult assembles the run result in execution order. Instances still
// pending after a cancellation conclude as skipped; a cancelled run never
// reports success.
func (state *runState) buildResult(start time.Time) domain.RunResult {
	out := domain.RunResult{
		Workflow:   state.rc.WorkflowName,
		SHA:        state.rc.Event.SHA,
		Conclusion: domain.StatusSucceeded,
		StartedAt:  start,
	}

	for inst := range state.graph.Walk() {
		res, ok := state.results[inst.Key]
		if !ok {
			res = domain.JobResult{
				Instance:   inst.Key.String(),
				JobID:      inst.JobID.String(),
				Conclusion: domain.StatusSkipped,
			}
		}
		out.Jobs = append(out.Jobs, res)
	}

	if out.Failed() || state.ctx.Err() != nil {
		out.Conclusion = domain.StatusFailed
	}
	out.Duration = time.Since(start)
	return out
}

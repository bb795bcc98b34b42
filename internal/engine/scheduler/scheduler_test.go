package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/gantry/internal/adapters/events"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.trai.ch/gantry/internal/engine/planner"
	"go.trai.ch/gantry/internal/engine/runner"
	"go.trai.ch/gantry/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// fakeRunner records which instances ran and delegates the outcome to fn.
type fakeRunner struct {
	mu   sync.Mutex
	runs []string
	fn   func(ctx context.Context, inst domain.JobInstance) domain.Status
}

func (f *fakeRunner) RunJob(ctx context.Context, _ runner.RunContext, inst domain.JobInstance) domain.JobResult {
	f.mu.Lock()
	f.runs = append(f.runs, inst.Key.String())
	f.mu.Unlock()

	conclusion := domain.StatusSucceeded
	if f.fn != nil {
		conclusion = f.fn(ctx, inst)
	}
	return domain.JobResult{
		Instance:   inst.Key.String(),
		JobID:      inst.JobID.String(),
		Conclusion: conclusion,
	}
}

func (f *fakeRunner) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

func newTestScheduler(t *testing.T, r scheduler.JobRunner) *scheduler.Scheduler {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	return scheduler.NewScheduler(r, log)
}

// graphFor plans a push-triggered workflow built from the given jobs.
func graphFor(t *testing.T, jobs map[string]domain.Job) *domain.Graph {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()

	wf := domain.Workflow{
		Name: domain.NewInternedString("CI"),
		On:   domain.Trigger{Push: &domain.PushFilter{}},
		Jobs: jobs,
	}
	plan, matched, err := planner.NewPlanner(log).Plan(wf, domain.PushEvent{Ref: "refs/heads/main"})
	require.NoError(t, err)
	require.True(t, matched)
	return plan.Graph
}

func job(id string, needs ...string) domain.Job {
	j := domain.Job{ID: domain.NewInternedString(id)}
	for _, n := range needs {
		j.Needs = append(j.Needs, domain.NewInternedString(n))
	}
	return j
}

func matrixJob(id string, failFast bool, maxParallel int, values ...string) domain.Job {
	return domain.Job{
		ID: domain.NewInternedString(id),
		Strategy: domain.Strategy{
			Matrix:      []domain.Axis{{Name: "v", Values: values}},
			FailFast:    failFast,
			MaxParallel: maxParallel,
		},
	}
}

func testRC(t *testing.T) runner.RunContext {
	t.Helper()
	return runner.RunContext{
		Workspace:    t.TempDir(),
		Event:        domain.PushEvent{Ref: "refs/heads/main", SHA: "abc123"},
		WorkflowName: "CI",
		Events:       events.NewNoop(),
	}
}

func TestScheduler_Run_NeedsOrder(t *testing.T) {
	fake := &fakeRunner{}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"lint":   job("lint"),
		"test":   job("test", "lint"),
		"deploy": job("deploy", "test"),
	})

	res := s.Run(context.Background(), testRC(t), graph, 1)

	assert.Equal(t, domain.StatusSucceeded, res.Conclusion)
	assert.Equal(t, []string{"lint", "test", "deploy"}, fake.ran())
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, "lint", res.Jobs[0].Instance)
}

func TestScheduler_Run_DependencyFailureSkipsDependents(t *testing.T) {
	fake := &fakeRunner{
		fn: func(_ context.Context, inst domain.JobInstance) domain.Status {
			if inst.JobID.String() == "lint" {
				return domain.StatusFailed
			}
			return domain.StatusSucceeded
		},
	}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"lint":   job("lint"),
		"test":   job("test", "lint"),
		"deploy": job("deploy", "test"),
	})

	res := s.Run(context.Background(), testRC(t), graph, 2)

	assert.Equal(t, domain.StatusFailed, res.Conclusion)
	assert.Equal(t, []string{"lint"}, fake.ran(), "dependents of a failed job must not run")

	conclusions := map[string]domain.Status{}
	for _, j := range res.Jobs {
		conclusions[j.Instance] = j.Conclusion
	}
	assert.Equal(t, domain.StatusFailed, conclusions["lint"])
	assert.Equal(t, domain.StatusSkipped, conclusions["test"])
	assert.Equal(t, domain.StatusSkipped, conclusions["deploy"])
}

func TestScheduler_Run_FailFastSkipsPendingSiblings(t *testing.T) {
	fake := &fakeRunner{
		fn: func(_ context.Context, _ domain.JobInstance) domain.Status {
			return domain.StatusFailed
		},
	}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"build": matrixJob("build", true, 0, "3.7", "3.8", "3.9"),
	})

	res := s.Run(context.Background(), testRC(t), graph, 1)

	assert.Equal(t, domain.StatusFailed, res.Conclusion)
	assert.Equal(t, []string{"build (v=3.7)"}, fake.ran(),
		"pending matrix siblings must be skipped once one instance fails")

	require.Len(t, res.Jobs, 3)
	assert.Equal(t, domain.StatusFailed, res.Jobs[0].Conclusion)
	assert.Equal(t, domain.StatusSkipped, res.Jobs[1].Conclusion)
	assert.Equal(t, domain.StatusSkipped, res.Jobs[2].Conclusion)
}

func TestScheduler_Run_NoFailFastRunsAllSiblings(t *testing.T) {
	fake := &fakeRunner{
		fn: func(_ context.Context, inst domain.JobInstance) domain.Status {
			if v, _ := inst.Selection.Get("v"); v == "3.8" {
				return domain.StatusFailed
			}
			return domain.StatusSucceeded
		},
	}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"build": matrixJob("build", false, 0, "3.7", "3.8", "3.9"),
	})

	res := s.Run(context.Background(), testRC(t), graph, 1)

	assert.Equal(t, domain.StatusFailed, res.Conclusion)
	assert.Len(t, fake.ran(), 3, "without fail-fast every sibling runs")
}

func TestScheduler_Run_ParallelismBounds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		active, maxActive := 0, 0

		fake := &fakeRunner{
			fn: func(_ context.Context, _ domain.JobInstance) domain.Status {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return domain.StatusSucceeded
			},
		}
		s := newTestScheduler(t, fake)

		graph := graphFor(t, map[string]domain.Job{
			"build": matrixJob("build", true, 0, "a", "b", "c", "d"),
		})

		res := s.Run(context.Background(), testRC(t), graph, 2)

		assert.Equal(t, domain.StatusSucceeded, res.Conclusion)
		assert.Len(t, fake.ran(), 4)
		assert.Equal(t, 2, maxActive, "independent instances should saturate the worker bound")
	})
}

func TestScheduler_Run_MaxParallelCapsMatrixGroup(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		active, maxActive := 0, 0

		fake := &fakeRunner{
			fn: func(_ context.Context, _ domain.JobInstance) domain.Status {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return domain.StatusSucceeded
			},
		}
		s := newTestScheduler(t, fake)

		graph := graphFor(t, map[string]domain.Job{
			"build": matrixJob("build", true, 1, "a", "b", "c"),
		})

		res := s.Run(context.Background(), testRC(t), graph, 4)

		assert.Equal(t, domain.StatusSucceeded, res.Conclusion)
		assert.Len(t, fake.ran(), 3)
		assert.Equal(t, 1, maxActive, "max-parallel must cap concurrency within the matrix group")
	})
}

func TestScheduler_Run_NeedsFanOutWaitsForAllInstances(t *testing.T) {
	fake := &fakeRunner{
		fn: func(_ context.Context, inst domain.JobInstance) domain.Status {
			if v, _ := inst.Selection.Get("v"); v == "b" {
				return domain.StatusFailed
			}
			return domain.StatusSucceeded
		},
	}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"build": matrixJob("build", false, 0, "a", "b"),
		"test":  job("test", "build"),
	})

	res := s.Run(context.Background(), testRC(t), graph, 2)

	assert.Equal(t, domain.StatusFailed, res.Conclusion)
	assert.NotContains(t, fake.ran(), "test",
		"a job needing a matrix group waits on every instance")
}

func TestScheduler_Run_CancelledContext(t *testing.T) {
	fake := &fakeRunner{}
	s := newTestScheduler(t, fake)

	graph := graphFor(t, map[string]domain.Job{
		"build": job("build"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Run(ctx, testRC(t), graph, 1)

	assert.Equal(t, domain.StatusFailed, res.Conclusion, "a cancelled run never reports success")
	assert.Empty(t, fake.ran())
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, domain.StatusSkipped, res.Jobs[0].Conclusion)
}

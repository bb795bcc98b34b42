package runner_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/gantry/internal/adapters/events"
	"go.trai.ch/gantry/internal/adapters/telemetry"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.trai.ch/gantry/internal/engine/runner"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type runnerMocks struct {
	executor *mocks.MockExecutor
	scm      *mocks.MockSourceControl
	cache    *mocks.MockCacheStore
	envs     *mocks.MockEnvironmentFactory
	runner   *runner.Runner
}

// newTestRunner wires a Runner with mocked adapters. The evaluator passes
// text through unchanged and models the status functions against the job
// status, which is all these tests need.
func newTestRunner(t *testing.T) *runnerMocks {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := &runnerMocks{
		executor: mocks.NewMockExecutor(ctrl),
		scm:      mocks.NewMockSourceControl(ctrl),
		cache:    mocks.NewMockCacheStore(ctrl),
		envs:     mocks.NewMockEnvironmentFactory(ctrl),
	}

	evaluator := mocks.NewMockEvaluator(ctrl)
	evaluator.EXPECT().Interpolate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(s string, _ domain.ExprScope) (string, error) { return s, nil },
	).AnyTimes()
	evaluator.EXPECT().Condition(gomock.Any(), gomock.Any()).DoAndReturn(
		func(expr string, scope domain.ExprScope) (bool, error) {
			switch expr {
			case "", "success()":
				return scope.JobStatus == domain.StatusSucceeded, nil
			case "always()":
				return true, nil
			case "failure()":
				return scope.JobStatus == domain.StatusFailed, nil
			case "broken(":
				return false, zerr.New("unexpected token")
			default:
				return false, nil
			}
		},
	).AnyTimes()

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	logger.EXPECT().Error(gomock.Any()).AnyTimes()

	m.runner = runner.NewRunner(
		m.executor, m.scm, m.cache, m.envs, evaluator, telemetry.NewNoop(), logger,
	)
	return m
}

func newRunContext(t *testing.T) runner.RunContext {
	t.Helper()
	return runner.RunContext{
		Workspace:    t.TempDir(),
		Event:        domain.PushEvent{Ref: "refs/heads/main", SHA: "abc123def456"},
		WorkflowName: "CI",
		Events:       events.NewNoop(),
		CacheScope:   "scope",
	}
}

func instanceOf(job domain.Job) domain.JobInstance {
	sel := domain.ExpandMatrix(job.Strategy.Matrix)[0]
	return domain.JobInstance{
		Key:       domain.InstanceKey(job.ID.String(), sel),
		JobID:     job.ID,
		Job:       job,
		Selection: sel,
	}
}

func runStep(cmd string) domain.Step {
	return domain.Step{Run: cmd}
}

func TestRunner_RunJob_AllStepsSucceed(t *testing.T) {
	m := newTestRunner(t)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	job := domain.Job{
		ID:    domain.NewInternedString("build"),
		Steps: []domain.Step{runStep("echo one"), runStep("echo two")},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))

	assert.Equal(t, domain.StatusSucceeded, result.Conclusion)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, domain.StatusSucceeded, result.Steps[0].Conclusion)
	assert.Equal(t, domain.StatusSucceeded, result.Steps[1].Conclusion)
}

func TestRunner_RunJob_FailureSkipsLaterSteps(t *testing.T) {
	m := newTestRunner(t)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		Return(zerr.New("exit status 1"))

	job := domain.Job{
		ID:    domain.NewInternedString("build"),
		Steps: []domain.Step{runStep("false"), runStep("echo never")},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))

	assert.Equal(t, domain.StatusFailed, result.Conclusion)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, domain.StatusFailed, result.Steps[0].Conclusion)
	assert.Equal(t, domain.StatusSkipped, result.Steps[1].Conclusion)
}

func TestRunner_RunJob_ConditionalStepsAfterFailure(t *testing.T) {
	m := newTestRunner(t)
	gomock.InOrder(
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
			Return(zerr.New("exit status 1")),
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil),
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil),
	)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			runStep("false"),
			{Run: "echo cleanup", If: "always()"},
			{Run: "echo report", If: "failure()"},
		},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))

	assert.Equal(t, domain.StatusFailed, result.Conclusion)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, domain.StatusFailed, result.Steps[0].Conclusion)
	assert.Equal(t, domain.StatusSucceeded, result.Steps[1].Conclusion)
	assert.Equal(t, domain.StatusSucceeded, result.Steps[2].Conclusion)
}

func TestRunner_RunJob_BrokenConditionFailsClosed(t *testing.T) {
	m := newTestRunner(t)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{Run: "echo guarded", If: "broken("},
		},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))

	assert.Equal(t, domain.StatusFailed, result.Conclusion)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, domain.StatusFailed, result.Steps[0].Conclusion)
	assert.Contains(t, result.Steps[0].Err, "unexpected token")
}

func TestRunner_RunJob_CheckoutStep(t *testing.T) {
	m := newTestRunner(t)
	rc := newRunContext(t)

	m.scm.EXPECT().
		Checkout(gomock.Any(), rc.Workspace, domain.CheckoutSpec{LFS: true}).
		Return(nil)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{Checkout: &domain.CheckoutSpec{LFS: true}},
		},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))
	assert.Equal(t, domain.StatusSucceeded, result.Conclusion)
}

func TestRunner_RunJob_SetupEnvAppliesToLaterSteps(t *testing.T) {
	m := newTestRunner(t)

	m.envs.EXPECT().
		GetEnvironment(gomock.Any(), map[string]string{"python": "3.7"}).
		Return([]string{"PYTHON_HOME=/opt/python", "PATH=/opt/python/bin"}, nil)

	var captured ports.ExecSpec
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec ports.ExecSpec) error {
			captured = spec
			return nil
		})

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{Setup: map[string]string{"python": "3.7"}},
			runStep("python --version"),
		},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))
	require.Equal(t, domain.StatusSucceeded, result.Conclusion)

	assert.Contains(t, captured.Env, "PYTHON_HOME=/opt/python")

	var path string
	for _, kv := range captured.Env {
		if after, ok := strings.CutPrefix(kv, "PATH="); ok {
			path = after
		}
	}
	assert.True(t, strings.HasPrefix(path, "/opt/python/bin"),
		"toolchain PATH should come first, got %q", path)
}

func TestRunner_RunJob_EnvFileFlowsBetweenSteps(t *testing.T) {
	m := newTestRunner(t)

	gomock.InOrder(
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, spec ports.ExecSpec) error {
				path := envValue(t, spec.Env, "GANTRY_ENV")
				require.NotEmpty(t, path)
				return os.WriteFile(path, []byte("RELEASE_TAG=v1.2.3\n"), 0o600)
			}),
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, spec ports.ExecSpec) error {
				assert.Equal(t, "v1.2.3", envValue(t, spec.Env, "RELEASE_TAG"))
				return nil
			}),
	)

	job := domain.Job{
		ID:    domain.NewInternedString("build"),
		Steps: []domain.Step{runStep("export-tag"), runStep("use-tag")},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))
	assert.Equal(t, domain.StatusSucceeded, result.Conclusion)
}

func envValue(t *testing.T, env []string, key string) string {
	t.Helper()
	for _, kv := range env {
		if after, ok := strings.CutPrefix(kv, key+"="); ok {
			return after
		}
	}
	return ""
}

// pipCachePath is the home-expanded form of ~/.cache/pip the runner hands
// to the cache store.
func pipCachePath(t *testing.T) string {
	t.Helper()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	return filepath.Join(home, ".cache", "pip")
}

func TestRunner_RunJob_CacheExactHit(t *testing.T) {
	m := newTestRunner(t)
	rc := newRunContext(t)

	m.cache.EXPECT().
		Restore(gomock.Any(), rc.CacheScope, "linux-pip-abc", []string{"linux-pip-"}, []string{pipCachePath(t)}).
		Return(domain.CacheRestore{Key: "linux-pip-abc", Exact: true}, nil)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{
				ID: "pip-cache",
				Cache: &domain.CacheSpec{
					Paths:       []string{"~/.cache/pip"},
					Key:         "linux-pip-abc",
					RestoreKeys: []string{"linux-pip-"},
				},
			},
		},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))

	require.Equal(t, domain.StatusSucceeded, result.Conclusion)
	assert.Equal(t, "true", result.Steps[0].Outputs["cache-hit"])
	// Exact hits never save; gomock would flag an unexpected Save call.
}

func TestRunner_RunJob_CacheMissSavesAfterSuccess(t *testing.T) {
	m := newTestRunner(t)
	rc := newRunContext(t)

	gomock.InOrder(
		m.cache.EXPECT().
			Restore(gomock.Any(), rc.CacheScope, "linux-pip-abc", gomock.Any(), gomock.Any()).
			Return(domain.CacheRestore{}, nil),
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil),
		m.cache.EXPECT().
			Save(gomock.Any(), rc.CacheScope, "linux-pip-abc", []string{pipCachePath(t)}).
			Return(nil),
	)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{
				Cache: &domain.CacheSpec{
					Paths: []string{"~/.cache/pip"},
					Key:   "linux-pip-abc",
				},
			},
			runStep("pip install -r requirements.txt"),
		},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))

	require.Equal(t, domain.StatusSucceeded, result.Conclusion)
	assert.Equal(t, "false", result.Steps[0].Outputs["cache-hit"])
}

func TestRunner_RunJob_CacheMissNoSaveAfterFailure(t *testing.T) {
	m := newTestRunner(t)
	rc := newRunContext(t)

	// A relative cache path anchors to the workspace.
	m.cache.EXPECT().
		Restore(gomock.Any(), rc.CacheScope, "deps-key", gomock.Any(), []string{filepath.Join(rc.Workspace, "deps")}).
		Return(domain.CacheRestore{}, nil)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).
		Return(zerr.New("exit status 2"))

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{Cache: &domain.CacheSpec{Paths: []string{"deps"}, Key: "deps-key"}},
			runStep("false"),
		},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))
	assert.Equal(t, domain.StatusFailed, result.Conclusion)
}

func TestRunner_RunJob_NoCacheSkipsRestoreAndSave(t *testing.T) {
	m := newTestRunner(t)
	rc := newRunContext(t)
	rc.NoCache = true

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Steps: []domain.Step{
			{ID: "c", Cache: &domain.CacheSpec{Paths: []string{"deps"}, Key: "deps-key"}},
		},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))

	require.Equal(t, domain.StatusSucceeded, result.Conclusion)
	assert.Equal(t, "false", result.Steps[0].Outputs["cache-hit"])
}

func TestRunner_RunJob_StepEventsEmitted(t *testing.T) {
	m := newTestRunner(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)

	rc := newRunContext(t)
	rc.Events = sink

	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil)

	gomock.InOrder(
		sink.EXPECT().Emit(domain.EventJobStarted, gomock.Any()),
		sink.EXPECT().Emit(domain.EventStepStarted, gomock.Any()),
		sink.EXPECT().Emit(domain.EventStepFinished, gomock.Any()).Do(
			func(_ string, payload any) {
				data, ok := payload.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "CI", data["workflow"])
				assert.Equal(t, string(domain.StatusSucceeded), data["conclusion"])
			}),
		sink.EXPECT().Emit(domain.EventJobFinished, gomock.Any()),
	)

	job := domain.Job{
		ID:    domain.NewInternedString("build"),
		Steps: []domain.Step{runStep("echo hi")},
	}

	result := m.runner.RunJob(context.Background(), rc, instanceOf(job))
	assert.Equal(t, domain.StatusSucceeded, result.Conclusion)
}

func TestRunner_RunJob_MatrixInstanceResult(t *testing.T) {
	m := newTestRunner(t)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil)

	job := domain.Job{
		ID: domain.NewInternedString("build"),
		Strategy: domain.Strategy{
			Matrix: []domain.Axis{{Name: "python-version", Values: []string{"3.7"}}},
		},
		Steps: []domain.Step{runStep("make test")},
	}

	result := m.runner.RunJob(context.Background(), newRunContext(t), instanceOf(job))

	assert.Equal(t, "build (python-version=3.7)", result.Instance)
	assert.Equal(t, "build", result.JobID)
	assert.Equal(t, domain.StatusSucceeded, result.Conclusion)
}

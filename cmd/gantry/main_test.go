package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/gantry/internal/app"
	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports/mocks"
	"go.trai.ch/gantry/internal/engine/planner"
	"go.trai.ch/gantry/internal/engine/runner"
	"go.trai.ch/gantry/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// stubRunner reports every job instance with a fixed conclusion.
type stubRunner struct{ status domain.Status }

func (s stubRunner) RunJob(_ context.Context, _ runner.RunContext, inst domain.JobInstance) domain.JobResult {
	return domain.JobResult{
		Instance:   inst.Key.String(),
		JobID:      inst.JobID.String(),
		Conclusion: s.status,
	}
}

func testComponents(ctrl *gomock.Controller, status domain.Status) (*app.Components, *mocks.MockWorkflowLoader, *mocks.MockSourceControl) {
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	loader := mocks.NewMockWorkflowLoader(ctrl)
	scm := mocks.NewMockSourceControl(ctrl)

	application := app.New(
		loader,
		planner.NewPlanner(log),
		scheduler.NewScheduler(stubRunner{status: status}, log),
		scm,
		mocks.NewMockCacheStore(ctrl),
		mocks.NewMockStatusReporter(ctrl),
		mocks.NewMockWatcher(ctrl),
		log,
	).WithStdout(io.Discard)

	return &app.Components{App: application, Logger: log}, loader, scm
}

func pushWorkflow(jobID string) domain.Workflow {
	return domain.Workflow{
		Name:   domain.NewInternedString("ci"),
		Source: domain.NewInternedString("ci.yml"),
		On:     domain.Trigger{Push: &domain.PushFilter{}},
		Jobs: map[string]domain.Job{
			jobID: {
				ID:    domain.NewInternedString(jobID),
				Steps: []domain.Step{{Run: "true"}},
			},
		},
	}
}

func provide(components *app.Components) ComponentProvider {
	return func(context.Context) (*app.Components, func(), error) {
		return components, func() {}, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, _, _ := testComponents(ctrl, domain.StatusSucceeded)
	stderr := new(bytes.Buffer)

	exitCode := run(context.Background(), []string{"version"}, stderr, provide(components))
	assert.Equal(t, exitOK, exitCode)
}

// TestRun_InitializationError verifies that run returns the usage exit code
// when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, exitUsage, exitCode)
	assert.Contains(t, stderr.String(), "init failed")
}

// TestRun_JobFailure verifies that a failing job maps to exit code 1.
func TestRun_JobFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, loader, scm := testComponents(ctrl, domain.StatusFailed)
	loader.EXPECT().LoadDir(gomock.Any()).Return([]domain.Workflow{pushWorkflow("test")}, nil)
	scm.EXPECT().DescribeHead(gomock.Any(), gomock.Any()).Return(domain.PushEvent{
		Ref: "refs/heads/main",
		SHA: "abc123",
		At:  time.Now(),
	}, nil)

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"run", "--workspace", t.TempDir()}, stderr, provide(components))

	assert.Equal(t, exitFailed, exitCode)
}

// TestRun_UnknownFlag verifies that usage errors map to exit code 2.
func TestRun_UnknownFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, _, _ := testComponents(ctrl, domain.StatusSucceeded)
	stderr := new(bytes.Buffer)

	exitCode := run(context.Background(), []string{"run", "--bogus"}, stderr, provide(components))
	assert.Equal(t, exitUsage, exitCode)
}

// TestRun_Signal verifies that the context is canceled on signal.
func TestRun_Signal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	components, loader, _ := testComponents(ctrl, domain.StatusSucceeded)

	blockCh := make(chan struct{})
	loader.EXPECT().LoadDir(gomock.Any()).DoAndReturn(func(string) ([]domain.Workflow, error) {
		select {
		case <-blockCh:
			return nil, context.Canceled
		case <-time.After(5 * time.Second):
			return nil, errors.New("timeout in mock")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	retCh := make(chan int)

	go func() {
		retCh <- run(ctx, []string{"run", "--workspace", t.TempDir()}, io.Discard, provide(components))
	}()

	// Give run() time to reach LoadDir before canceling.
	time.Sleep(100 * time.Millisecond)

	cancel()
	close(blockCh)

	select {
	case ret := <-retCh:
		assert.NotEqual(t, exitOK, ret)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run() to return")
	}
}

package testutil

import (
	"context"
	"time"

	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) InitializeRunQueues(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPipelineService) ScheduleRetentionCleanup() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPipelineService) CreateRun(
	ctx context.Context,
	stackID int64,
	branch string,
) (*store.Run, error) {
	args := m.Called(ctx, stackID, branch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockPipelineService) GetRunByID(ctx context.Context, runID int64) (*store.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockPipelineService) ListStackRuns(
	ctx context.Context,
	stackID int64,
) ([]store.Run, error) {
	args := m.Called(ctx, stackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Run), args.Error(1)
}

func (m *MockPipelineService) ListStackRunsPaginated(
	ctx context.Context,
	stackID, limit, offset int64,
) ([]store.Run, error) {
	args := m.Called(ctx, stackID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Run), args.Error(1)
}

func (m *MockPipelineService) GetRunCount(ctx context.Context, stackID int64) (int64, error) {
	args := m.Called(ctx, stackID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPipelineService) DeleteRun(ctx context.Context, runID int64) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockPipelineService) GetStackRunData(
	ctx context.Context,
	stackID int64,
) (*service.StackRunData, error) {
	args := m.Called(ctx, stackID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StackRunData), args.Error(1)
}

func (m *MockPipelineService) UpdateRunStartedOn(
	ctx context.Context,
	runID int64,
	workingDirectory string,
	status store.RunStatus,
	startedOn *time.Time,
) error {
	args := m.Called(ctx, runID, workingDirectory, status, startedOn)
	return args.Error(0)
}

func (m *MockPipelineService) UpdateRunStage(
	ctx context.Context,
	runID int64,
	stage store.RunStage,
	at *time.Time,
) error {
	args := m.Called(ctx, runID, stage, at)
	return args.Error(0)
}

func (m *MockPipelineService) UpdateRunEndedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	artifactKey *string,
	endedOn *time.Time,
) error {
	args := m.Called(ctx, runID, status, artifactKey, endedOn)
	return args.Error(0)
}

func (m *MockPipelineService) AppendRunOutput(
	ctx context.Context,
	runID int64,
	out string,
) error {
	args := m.Called(ctx, runID, out)
	return args.Error(0)
}

func (m *MockPipelineService) GetAPIKeyByValue(
	ctx context.Context,
	value string,
) (*store.APIKey, error) {
	args := m.Called(ctx, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.APIKey), args.Error(1)
}

func (m *MockPipelineService) AddRunQueue(id int64, maxRuns int64) bool {
	args := m.Called(id, maxRuns)
	return args.Bool(0)
}

func (m *MockPipelineService) StartRunQueue(id int64) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockPipelineService) RemoveRunQueue(id int64) {
	m.Called(id)
}

func (m *MockPipelineService) EnqueueRun(r *store.Run) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockPipelineService) CancelRun(stackID, runID int64) error {
	args := m.Called(stackID, runID)
	return args.Error(0)
}

func (m *MockPipelineService) ShutdownAll() {
	m.Called()
}

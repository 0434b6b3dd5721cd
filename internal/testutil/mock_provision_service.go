package testutil

import (
	"context"

	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockProvisionService struct {
	mock.Mock
}

func (m *MockProvisionService) ProvisionStack(
	ctx context.Context,
	params *types.StackParams,
) (*service.StackOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StackOutput), args.Error(1)
}

func (m *MockProvisionService) GetStackByID(ctx context.Context, id int64) (*store.Stack, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Stack), args.Error(1)
}

func (m *MockProvisionService) ListStacks(ctx context.Context) ([]*store.Stack, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Stack), args.Error(1)
}

func (m *MockProvisionService) AssignBuilder(
	ctx context.Context,
	stackID int64,
	builderID *int64,
) error {
	args := m.Called(ctx, stackID, builderID)
	return args.Error(0)
}

func (m *MockProvisionService) TeardownStack(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

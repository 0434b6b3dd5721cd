package testutil

import (
	"context"

	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockBuilderService struct {
	mock.Mock
}

func (m *MockBuilderService) CreateBuilder(
	ctx context.Context,
	name, hostname, username, workspace string,
	sshPrivateKey []byte,
) (*store.Builder, error) {
	args := m.Called(ctx, name, hostname, username, workspace, sshPrivateKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Builder), args.Error(1)
}

func (m *MockBuilderService) GetBuilderByID(ctx context.Context, id int64) (*store.Builder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Builder), args.Error(1)
}

func (m *MockBuilderService) ListBuilders(ctx context.Context) ([]*store.Builder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Builder), args.Error(1)
}

func (m *MockBuilderService) UpdateBuilder(
	ctx context.Context,
	builderID int64,
	name, hostname, username, workspace string,
) error {
	args := m.Called(ctx, builderID, name, hostname, username, workspace)
	return args.Error(0)
}

func (m *MockBuilderService) DeleteBuilder(ctx context.Context, builderID int64) error {
	args := m.Called(ctx, builderID)
	return args.Error(0)
}

func (m *MockBuilderService) TestBuilderConnection(ctx context.Context, builderID int64) error {
	args := m.Called(ctx, builderID)
	return args.Error(0)
}

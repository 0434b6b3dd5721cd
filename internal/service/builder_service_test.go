package service

import (
	"context"
	"testing"

	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBuilderStore struct {
	mock.Mock
}

func (m *MockBuilderStore) CreateBuilder(
	ctx context.Context,
	name, hostname, username, workspace, sshPrivateKeyHash string,
) (*store.Builder, error) {
	args := m.Called(ctx, name, hostname, username, workspace, sshPrivateKeyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Builder), args.Error(1)
}

func (m *MockBuilderStore) ReadBuilderByID(ctx context.Context, id int64) (*store.Builder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Builder), args.Error(1)
}

func (m *MockBuilderStore) UpdateBuilder(
	ctx context.Context,
	id int64,
	name, hostname, username, workspace string,
) error {
	args := m.Called(ctx, id, name, hostname, username, workspace)
	return args.Error(0)
}

func (m *MockBuilderStore) DeleteBuilder(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBuilderStore) ListBuilders(ctx context.Context) ([]*store.Builder, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*store.Builder), args.Error(1)
}

func TestBuilderService_CreateBuilder(t *testing.T) {
	t.Run("success - ssh key is stored encrypted", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockBuilderStore)
		mockStore.On(
			"CreateBuilder", ctx, "builder-one", "10.0.0.5", "ci", "/home/ci/workspace",
			"enc:key-material",
		).Return(&store.Builder{BuilderID: 1, Name: "builder-one"}, nil)

		svc := NewBuilderService(mockStore, noopEncrypter{})

		// act
		b, err := svc.CreateBuilder(
			ctx, "builder-one", "10.0.0.5", "ci", "/home/ci/workspace", []byte("key-material"),
		)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, int64(1), b.BuilderID)
		mockStore.AssertExpectations(t)
	})
}

func TestBuilderService_GetBuilderByID(t *testing.T) {
	t.Run("success - ssh key is decrypted on read", func(t *testing.T) {
		// arrange
		ctx := context.Background()
		mockStore := new(MockBuilderStore)
		mockStore.On("ReadBuilderByID", ctx, int64(1)).Return(&store.Builder{
			BuilderID:         1,
			SSHPrivateKeyHash: "enc:key-material",
		}, nil)

		svc := NewBuilderService(mockStore, noopEncrypter{})

		// act
		b, err := svc.GetBuilderByID(ctx, 1)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, []byte("key-material"), b.SSHPrivateKey)
	})
}

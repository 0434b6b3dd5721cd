package testutil

import (
	"context"

	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDrainService struct {
	mock.Mock
}

func (m *MockDrainService) Drain(
	ctx context.Context,
	req service.DrainRequest,
) service.DrainResponse {
	args := m.Called(ctx, req)
	return args.Get(0).(service.DrainResponse)
}

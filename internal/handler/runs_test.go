package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRunHandler_PostRunWebhookTrigger(t *testing.T) {
	t.Run("success - valid webhook key enqueues a run", func(t *testing.T) {
		// arrange
		run := &store.Run{RunID: 10, RunStackID: 1, Branch: "main", Status: store.StatusQueued}
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("GetAPIKeyByValue", context.Background(), "secret-key").
			Return(&store.APIKey{ID: 1, Value: "secret-key"}, nil)
		mockPipelineService.On("CreateRun", context.Background(), int64(1), "main").
			Return(run, nil)
		mockPipelineService.On("EnqueueRun", run).Return(nil)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/stacks/1/runs/webhook-trigger/main", nil,
		)
		req.Header.Set(internal.WebhookTriggerKeyHeader, "secret-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id", "branch")
		c.SetParamValues("1", "main")
		h := NewRunHandler(mockPipelineService)

		// act
		err := h.PostRunWebhookTrigger(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		mockPipelineService.AssertExpectations(t)
	})
	t.Run("failure - unknown webhook key is rejected", func(t *testing.T) {
		// arrange
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("GetAPIKeyByValue", context.Background(), "bad-key").
			Return(nil, echo.ErrNotFound)

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/stacks/1/runs/webhook-trigger/main", nil,
		)
		req.Header.Set(internal.WebhookTriggerKeyHeader, "bad-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id", "branch")
		c.SetParamValues("1", "main")
		h := NewRunHandler(mockPipelineService)

		// act
		err := h.PostRunWebhookTrigger(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
		mockPipelineService.AssertNotCalled(
			t, "CreateRun", mock.Anything, mock.Anything, mock.Anything,
		)
	})
	t.Run("failure - full queue is reported as unavailable", func(t *testing.T) {
		// arrange
		run := &store.Run{RunID: 10, RunStackID: 1, Branch: "main", Status: store.StatusQueued}
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("GetAPIKeyByValue", context.Background(), "secret-key").
			Return(&store.APIKey{ID: 1, Value: "secret-key"}, nil)
		mockPipelineService.On("CreateRun", context.Background(), int64(1), "main").
			Return(run, nil)
		mockPipelineService.On("EnqueueRun", run).Return(service.NewErrRunQueueFull())

		e := echo.New()
		req := httptest.NewRequest(
			http.MethodPost, "/api/stacks/1/runs/webhook-trigger/main", nil,
		)
		req.Header.Set(internal.WebhookTriggerKeyHeader, "secret-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id", "branch")
		c.SetParamValues("1", "main")
		h := NewRunHandler(mockPipelineService)

		// act
		err := h.PostRunWebhookTrigger(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, he.Code)
	})
}

func TestRunHandler_GetRun(t *testing.T) {
	t.Run("success - run is returned", func(t *testing.T) {
		// arrange
		run := &store.Run{
			RunID:      10,
			RunStackID: 1,
			Branch:     "main",
			Stage:      store.StageDeploy,
			Status:     store.StatusPassed,
		}
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("GetRunByID", context.Background(), int64(10)).Return(run, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/stacks/1/runs/10", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id", "run_id")
		c.SetParamValues("1", "10")
		h := NewRunHandler(mockPipelineService)

		// act
		err := h.GetRun(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"passed"`)
	})
}

func TestRunHandler_PostCancelRun(t *testing.T) {
	t.Run("success - cancellation is accepted", func(t *testing.T) {
		// arrange
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("CancelRun", int64(1), int64(10)).Return(nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/stacks/1/runs/10/cancel", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id", "run_id")
		c.SetParamValues("1", "10")
		h := NewRunHandler(mockPipelineService)

		// act
		err := h.PostCancelRun(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

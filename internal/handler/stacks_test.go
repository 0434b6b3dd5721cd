package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/testutil"
	"github.com/sitepipe/sitepipe/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	internal.InitializeConfiguration()
}

func TestStackHandler_PostStack(t *testing.T) {
	t.Run("success - stack is provisioned and queue started", func(t *testing.T) {
		// arrange
		params := &types.StackParams{
			Workload:      "demo",
			Environment:   "dev",
			Region:        "eu-north-1",
			Deployer:      "deploy-bot",
			Repository:    "acme/website",
			Branch:        "main",
			ConnectionRef: "conn-ref",
			PriceTier:     types.TierEconomy,
			BuildImage:    "node:20-alpine",
		}
		out := &service.StackOutput{
			StackID:    1,
			BucketName: "demo-dev-eu-north-1-site",
			URL:        "https://d123.cloudfront.net",
		}
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("ProvisionStack", context.Background(), params).Return(out, nil)
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("AddRunQueue", int64(1), internal.Config.QueueSize).Return(true)
		mockPipelineService.On("StartRunQueue", int64(1)).Return(nil)

		e := echo.New()
		body := `{
			"workload": "demo",
			"environment": "dev",
			"region": "eu-north-1",
			"deployer": "deploy-bot",
			"repository": "acme/website",
			"branch": "main",
			"connection_ref": "conn-ref",
			"price_tier": "economy",
			"build_image": "node:20-alpine"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/stacks", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewStackHandler(mockProvisionService, mockPipelineService)

		// act
		err := h.PostStack(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), "https://d123.cloudfront.net")
		mockProvisionService.AssertExpectations(t)
		mockPipelineService.AssertExpectations(t)
	})
	t.Run("success - converging an existing stack keeps its run queue", func(t *testing.T) {
		// arrange
		out := &service.StackOutput{
			StackID:    1,
			BucketName: "demo-dev-eu-north-1-site",
			URL:        "https://d123.cloudfront.net",
		}
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("ProvisionStack", context.Background(), mock.Anything).Return(out, nil)
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("AddRunQueue", int64(1), internal.Config.QueueSize).Return(false)

		e := echo.New()
		body := `{
			"workload": "demo",
			"environment": "dev",
			"region": "eu-north-1",
			"deployer": "deploy-bot",
			"repository": "acme/website",
			"branch": "main",
			"connection_ref": "conn-ref",
			"price_tier": "economy",
			"build_image": "node:20-alpine"
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/stacks", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewStackHandler(mockProvisionService, mockPipelineService)

		// act
		err := h.PostStack(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)
		mockPipelineService.AssertNotCalled(t, "StartRunQueue", mock.Anything)
	})
	t.Run("failure - invalid parameters are a bad request", func(t *testing.T) {
		// arrange
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("ProvisionStack", context.Background(), mock.Anything).
			Return(nil, types.ValidationError{Message: `invalid workload name "BAD"`})
		mockPipelineService := new(testutil.MockPipelineService)

		e := echo.New()
		body := `{"workload": "BAD"}`
		req := httptest.NewRequest(http.MethodPost, "/api/stacks", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		h := NewStackHandler(mockProvisionService, mockPipelineService)

		// act
		err := h.PostStack(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockPipelineService.AssertNotCalled(t, "AddRunQueue", mock.Anything, mock.Anything)
	})
}

func TestStackHandler_GetStack(t *testing.T) {
	t.Run("success - stack is returned", func(t *testing.T) {
		// arrange
		expected := &store.Stack{
			StackID:    3,
			Workload:   "demo",
			BucketName: "demo-dev-eu-north-1-site",
			Status:     store.StackActive,
		}
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("GetStackByID", context.Background(), int64(3)).Return(expected, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/stacks/3", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id")
		c.SetParamValues("3")
		h := NewStackHandler(mockProvisionService, new(testutil.MockPipelineService))

		// act
		err := h.GetStack(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "demo-dev-eu-north-1-site")
	})
}

func TestStackHandler_DeleteStack(t *testing.T) {
	t.Run("success - stack is torn down and queue removed", func(t *testing.T) {
		// arrange
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("TeardownStack", context.Background(), int64(3)).Return(nil)
		mockPipelineService := new(testutil.MockPipelineService)
		mockPipelineService.On("RemoveRunQueue", int64(3)).Return()

		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/stacks/3", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id")
		c.SetParamValues("3")
		h := NewStackHandler(mockProvisionService, mockPipelineService)

		// act
		err := h.DeleteStack(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockPipelineService.AssertExpectations(t)
	})
	t.Run("failure - drain failure blocks the teardown", func(t *testing.T) {
		// arrange
		mockProvisionService := new(testutil.MockProvisionService)
		mockProvisionService.On("TeardownStack", context.Background(), int64(3)).
			Return(service.DrainFailedError{
				BucketName: "demo-dev-eu-north-1-site",
				Detail:     "listing objects failed",
			})
		mockPipelineService := new(testutil.MockPipelineService)

		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/stacks/3", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("stack_id")
		c.SetParamValues("3")
		h := NewStackHandler(mockProvisionService, mockPipelineService)

		// act
		err := h.DeleteStack(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusConflict, he.Code)
		mockPipelineService.AssertNotCalled(t, "RemoveRunQueue", mock.Anything)
	})
}

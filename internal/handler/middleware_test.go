package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/store"
	"github.com/sitepipe/sitepipe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAPIKeyMiddleware(t *testing.T) {
	next := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	t.Run("success - request with a known key passes", func(t *testing.T) {
		// arrange
		mockAPIKeyService := new(testutil.MockAPIKeyService)
		mockAPIKeyService.On("GetAPIKeyByValue", context.Background(), "secret-key").
			Return(&store.APIKey{ID: 1, Value: "secret-key"}, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/stacks", nil)
		req.Header.Set(internal.APIKeyHeader, "secret-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyMiddleware(mockAPIKeyService)(next)(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("failure - missing key is unauthorized", func(t *testing.T) {
		// arrange
		mockAPIKeyService := new(testutil.MockAPIKeyService)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/stacks", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyMiddleware(mockAPIKeyService)(next)(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
		mockAPIKeyService.AssertNotCalled(t, "GetAPIKeyByValue", mock.Anything, mock.Anything)
	})
	t.Run("failure - unknown key is unauthorized", func(t *testing.T) {
		// arrange
		mockAPIKeyService := new(testutil.MockAPIKeyService)
		mockAPIKeyService.On("GetAPIKeyByValue", context.Background(), "bad-key").
			Return(nil, echo.ErrNotFound)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/stacks", nil)
		req.Header.Set(internal.APIKeyHeader, "bad-key")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		// act
		err := APIKeyMiddleware(mockAPIKeyService)(next)(c)

		// assert
		assert.Error(t, err)
		he, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}

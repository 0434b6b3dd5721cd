package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/service"
)

// APIKeyMiddleware guards the operator API. Every request must carry a
// known key in the X-Sitepipe-Api-Key header.
func APIKeyMiddleware(apiKeyService service.APIKeyServicer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value := c.Request().Header.Get(internal.APIKeyHeader)
			if value == "" {
				return newError(nil, http.StatusUnauthorized, "missing api key")
			}
			if _, err := apiKeyService.GetAPIKeyByValue(
				c.Request().Context(), value,
			); err != nil {
				return newError(err, http.StatusUnauthorized, "invalid api key")
			}
			return next(c)
		}
	}
}

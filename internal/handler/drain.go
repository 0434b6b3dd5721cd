package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/types"
)

func SetupDrainRoutes(g *echo.Group, drainer service.Drainer) {
	h := NewDrainHandler(drainer)
	g.POST("/api/drain", h.PostDrain)
}

type DrainHandler struct {
	drainer service.Drainer
}

func NewDrainHandler(drainer service.Drainer) *DrainHandler {
	return &DrainHandler{drainer}
}

// PostDrain invokes a bucket drain. The HTTP status is 200 for every
// processed request; success or failure travels in the response body so
// the caller decides what a failed drain means for its own lifecycle.
func (h *DrainHandler) PostDrain(c echo.Context) error {
	dp := new(DrainParams)
	if err := c.Bind(dp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid drain request")
	}

	resp := h.drainer.Drain(c.Request().Context(), service.DrainRequest{
		Operation:  types.Operation(dp.Operation),
		BucketName: dp.BucketName,
	})

	return c.JSON(http.StatusOK, resp)
}

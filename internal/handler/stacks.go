package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/service"
	"github.com/sitepipe/sitepipe/internal/types"
)

func SetupStackRoutes(
	g *echo.Group,
	provisionService service.ProvisionServicer,
	pipelineService service.PipelineServicer,
) {
	h := NewStackHandler(provisionService, pipelineService)
	stacksGroup := g.Group("/api/stacks")
	stacksGroup.GET("", h.GetStacks)
	stacksGroup.POST("", h.PostStack)
	stacksGroup.GET("/:stack_id", h.GetStack)
	stacksGroup.DELETE("/:stack_id", h.DeleteStack)
	stacksGroup.PATCH("/:stack_id/builder", h.PatchStackBuilder)
}

type StackHandler struct {
	provisionService service.ProvisionServicer
	pipelineService  service.PipelineServicer
}

func NewStackHandler(
	provisionService service.ProvisionServicer,
	pipelineService service.PipelineServicer,
) *StackHandler {
	return &StackHandler{provisionService, pipelineService}
}

func (h *StackHandler) GetStacks(c echo.Context) error {
	stacks, err := h.provisionService.ListStacks(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list stacks")
	}
	return c.JSON(http.StatusOK, stacks)
}

// PostStack provisions a stack from the posted parameters. Posting the
// same workload and environment again converges the existing stack
// instead of erroring.
func (h *StackHandler) PostStack(c echo.Context) error {
	params := new(types.StackParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid stack data")
	}

	out, err := h.provisionService.ProvisionStack(c.Request().Context(), params)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "stack already exists")
		}
		var verr types.ValidationError
		if errors.As(err, &verr) {
			return newError(err, http.StatusBadRequest, verr.Error())
		}
		return newError(err, http.StatusInternalServerError, "unable to provision stack")
	}

	// converging an existing stack keeps its live queue
	if h.pipelineService.AddRunQueue(out.StackID, internal.Config.QueueSize) {
		if err := h.pipelineService.StartRunQueue(out.StackID); err != nil {
			c.Logger().Errorf("err starting run queue for stack %d: %+v", out.StackID, err)
		}
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *StackHandler) GetStack(c echo.Context) error {
	sp := new(StackIDParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid stack id")
	}

	stack, err := h.provisionService.GetStackByID(c.Request().Context(), sp.StackID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "stack not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read stack")
	}
	return c.JSON(http.StatusOK, stack)
}

// DeleteStack tears the stack down. A drain failure aborts the teardown
// and is reported as a conflict: the stack stays in the deleting state
// with its bucket and objects intact.
func (h *StackHandler) DeleteStack(c echo.Context) error {
	sp := new(StackIDParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid stack id")
	}

	if err := h.provisionService.TeardownStack(c.Request().Context(), sp.StackID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "stack not found")
		}
		var dfe service.DrainFailedError
		if errors.As(err, &dfe) {
			return newError(err, http.StatusConflict, dfe.Error())
		}
		return newError(err, http.StatusInternalServerError, "unable to tear down stack")
	}

	h.pipelineService.RemoveRunQueue(sp.StackID)

	return c.NoContent(http.StatusNoContent)
}

func (h *StackHandler) PatchStackBuilder(c echo.Context) error {
	bp := new(BuilderAssignParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid builder assignment")
	}

	if err := h.provisionService.AssignBuilder(
		c.Request().Context(), bp.StackID, bp.BuilderID,
	); err != nil {
		if isForeignKeyConstraintError(err) {
			return newError(err, http.StatusBadRequest, "builder does not exist")
		}
		return newError(err, http.StatusInternalServerError, "unable to assign builder")
	}

	return c.NoContent(http.StatusNoContent)
}

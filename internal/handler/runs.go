package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
	"github.com/sitepipe/sitepipe/internal/service"
)

const maxRunsPerPage int64 = 10

// SetupWebhookRoutes registers the push hook. It authenticates with the
// webhook key header instead of the operator api key.
func SetupWebhookRoutes(g *echo.Group, pipelineService service.PipelineServicer) {
	h := NewRunHandler(pipelineService)
	g.POST(
		"/api/stacks/:stack_id/runs/webhook-trigger/:branch",
		h.PostRunWebhookTrigger,
	)
}

func SetupRunRoutes(g *echo.Group, pipelineService service.PipelineServicer) {
	h := NewRunHandler(pipelineService)
	runsGroup := g.Group("/api/stacks/:stack_id/runs")
	runsGroup.GET("", h.GetRuns)
	runsGroup.POST("", h.PostRun)
	runsGroup.GET("/:run_id", h.GetRun)
	runsGroup.GET("/:run_id/output", h.GetRunOutput)
	runsGroup.POST("/:run_id/cancel", h.PostCancelRun)
	runsGroup.DELETE("/:run_id", h.DeleteRun)
}

type RunHandler struct {
	pipelineService service.PipelineServicer
}

func NewRunHandler(pipelineService service.PipelineServicer) *RunHandler {
	return &RunHandler{pipelineService}
}

func (h *RunHandler) GetRuns(c echo.Context) error {
	lrp := new(ListRunsParams)
	if err := c.Bind(lrp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run listing request")
	}
	if lrp.Page < 1 {
		lrp.Page = 1
	}

	runs, err := h.pipelineService.ListStackRunsPaginated(
		c.Request().Context(),
		lrp.StackID,
		maxRunsPerPage,
		(lrp.Page-1)*maxRunsPerPage,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list runs")
	}

	count, err := h.pipelineService.GetRunCount(c.Request().Context(), lrp.StackID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to count runs")
	}
	pages := count / maxRunsPerPage
	if count%maxRunsPerPage != 0 || pages == 0 {
		pages++
	}

	return c.JSON(http.StatusOK, map[string]any{
		"runs":  runs,
		"page":  lrp.Page,
		"pages": pages,
	})
}

func (h *RunHandler) PostRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run data")
	}
	if rp.Branch == "" {
		rp.Branch = "main"
	}

	r, err := h.pipelineService.CreateRun(c.Request().Context(), rp.StackID, rp.Branch)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return newError(err, http.StatusNotFound, "stack not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to create run")
	}

	if err := h.pipelineService.EnqueueRun(r); err != nil {
		return newError(err, http.StatusServiceUnavailable, "run queue is full")
	}

	return c.JSON(http.StatusCreated, r)
}

// PostRunWebhookTrigger is the source hook: a push to the repository
// posts here and enqueues a run for the pushed branch.
func (h *RunHandler) PostRunWebhookTrigger(c echo.Context) error {
	apiKeyValue := c.Request().Header.Get(internal.WebhookTriggerKeyHeader)
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run data")
	}
	if rp.Branch == "" {
		rp.Branch = "main"
	}

	if _, err := h.pipelineService.GetAPIKeyByValue(
		c.Request().Context(), apiKeyValue,
	); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook key")
	}

	r, err := h.pipelineService.CreateRun(c.Request().Context(), rp.StackID, rp.Branch)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return echo.NewHTTPError(http.StatusNotFound, "stack not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to create run")
	}

	if err := h.pipelineService.EnqueueRun(r); err != nil {
		return echo.NewHTTPError(
			http.StatusServiceUnavailable, "run queue is full",
		).WithInternal(err)
	}

	return c.NoContent(http.StatusCreated)
}

func (h *RunHandler) GetRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}

	r, err := h.pipelineService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RunHandler) GetRunOutput(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}

	r, err := h.pipelineService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}

	output := ""
	if r.Output != nil {
		output = *r.Output
	}
	return c.String(http.StatusOK, output)
}

func (h *RunHandler) PostCancelRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}

	if err := h.pipelineService.CancelRun(rp.StackID, rp.RunID); err != nil {
		return newError(err, http.StatusNotFound, "run queue not found")
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *RunHandler) DeleteRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run id")
	}

	if err := h.pipelineService.DeleteRun(c.Request().Context(), rp.RunID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to delete run")
	}
	return c.NoContent(http.StatusNoContent)
}

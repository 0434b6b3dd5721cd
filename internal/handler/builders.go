package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal/service"
)

func SetupBuilderRoutes(g *echo.Group, builderService service.BuilderServicer) {
	h := NewBuilderHandler(builderService)
	buildersGroup := g.Group("/api/builders")
	buildersGroup.GET("", h.GetBuilders)
	buildersGroup.POST("", h.PostBuilder)
	buildersGroup.PATCH("/:builder_id", h.PatchBuilder)
	buildersGroup.DELETE("/:builder_id", h.DeleteBuilder)
	buildersGroup.POST("/:builder_id/test-connection", h.PostTestBuilderConnection)
}

type BuilderHandler struct {
	builderService service.BuilderServicer
}

func NewBuilderHandler(builderService service.BuilderServicer) *BuilderHandler {
	return &BuilderHandler{builderService}
}

func (h *BuilderHandler) GetBuilders(c echo.Context) error {
	builders, err := h.builderService.ListBuilders(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list builders")
	}
	// never expose key material, even encrypted
	for _, b := range builders {
		b.SSHPrivateKeyHash = ""
	}
	return c.JSON(http.StatusOK, builders)
}

func (h *BuilderHandler) PostBuilder(c echo.Context) error {
	bp := new(BuilderParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid builder data")
	}
	if bp.Name == "" || bp.Hostname == "" || bp.Username == "" ||
		bp.Workspace == "" || bp.SSHPrivateKey == "" {
		return newError(nil, http.StatusBadRequest, "missing builder fields")
	}

	b, err := h.builderService.CreateBuilder(
		c.Request().Context(),
		bp.Name, bp.Hostname, bp.Username, bp.Workspace,
		[]byte(bp.SSHPrivateKey),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "builder name already in use")
		}
		return newError(err, http.StatusInternalServerError, "unable to create builder")
	}

	b.SSHPrivateKeyHash = ""
	return c.JSON(http.StatusCreated, b)
}

func (h *BuilderHandler) PatchBuilder(c echo.Context) error {
	bp := new(BuilderParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid builder data")
	}

	if err := h.builderService.UpdateBuilder(
		c.Request().Context(),
		bp.BuilderID,
		bp.Name, bp.Hostname, bp.Username, bp.Workspace,
	); err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "builder name already in use")
		}
		return newError(err, http.StatusInternalServerError, "unable to update builder")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BuilderHandler) DeleteBuilder(c echo.Context) error {
	bp := new(BuilderParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid builder id")
	}

	if err := h.builderService.DeleteBuilder(c.Request().Context(), bp.BuilderID); err != nil {
		if isForeignKeyConstraintError(err) {
			return newError(err, http.StatusConflict, "builder is assigned to a stack")
		}
		return newError(err, http.StatusInternalServerError, "unable to delete builder")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BuilderHandler) PostTestBuilderConnection(c echo.Context) error {
	bp := new(BuilderParams)
	if err := c.Bind(bp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid builder id")
	}

	if err := h.builderService.TestBuilderConnection(
		c.Request().Context(), bp.BuilderID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "builder not found")
		}
		return newError(err, http.StatusBadGateway, "builder connection failed")
	}
	return c.NoContent(http.StatusOK)
}

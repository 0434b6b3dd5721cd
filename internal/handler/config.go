package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitepipe/sitepipe/internal"
)

func SetupConfigRoutes(g *echo.Group) {
	configGroup := g.Group("/api/config")
	configGroup.GET("", GetConfig)
	configGroup.PUT("", PutConfig)
}

func GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, internal.Config)
}

func PutConfig(c echo.Context) error {
	cp := new(ConfigParams)
	if err := c.Bind(cp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid config data")
	}
	if cp.QueueSize < 1 || cp.RunRetentionDays < 1 || cp.DrainPageSize < 0 {
		return newError(nil, http.StatusBadRequest, "invalid config values")
	}

	config := &internal.Configuration{
		QueueSize:        cp.QueueSize,
		RunRetentionDays: cp.RunRetentionDays,
		DrainPageSize:    cp.DrainPageSize,
	}
	if err := internal.UpdateConfiguration(config); err != nil {
		return newError(
			err, http.StatusInternalServerError, "unable to update configuration file",
		)
	}

	return c.JSON(http.StatusOK, internal.Config)
}

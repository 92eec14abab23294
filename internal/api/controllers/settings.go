package controllers

import (
	"net/http"

	"github.com/datallboy/gorom/internal/app"
	"github.com/labstack/echo/v5"
)

type SettingsController struct {
	App *app.Context
}

func (ctrl *SettingsController) Get(c *echo.Context) error {
	s := ctrl.App.Settings
	return c.JSON(http.StatusOK, SettingsResponse{
		MaxConcurrentDownloads: s.MaxConcurrentDownloads(),
		DestinationRoot:        s.DestinationRoot(),
	})
}

// Update changes the concurrency ceiling. Batches already queued keep the ceiling
// they were submitted with.
func (ctrl *SettingsController) Update(c *echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	if err := ctrl.App.Settings.SetMaxConcurrentDownloads(req.MaxConcurrentDownloads); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	ctrl.App.Logger.Info("Max concurrent downloads set to %d", req.MaxConcurrentDownloads)
	return ctrl.Get(c)
}

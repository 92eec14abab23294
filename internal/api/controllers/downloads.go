package controllers

import (
	"net/http"
	"strconv"

	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/domain"
	"github.com/labstack/echo/v5"
)

type DownloadController struct {
	App *app.Context
}

// DownloadGame starts a single rom download in its own session.
func (ctrl *DownloadController) DownloadGame(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid rom id")
	}

	items, err := ctrl.App.GameItems(c.Request().Context(), []int{id})
	if err != nil {
		return respondError(c, err)
	}

	sid, err := ctrl.App.Engine.DownloadOne(c.Request().Context(), items[0])
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, SessionResponse{SessionID: sid, Queued: 1})
}

// DownloadGames queues several roms into the active bulk session.
func (ctrl *DownloadController) DownloadGames(c *echo.Context) error {
	var req GamesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	items, err := ctrl.App.GameItems(c.Request().Context(), req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return ctrl.queue(c, items)
}

// DownloadPlatform queues every rom of a platform, or only those not on disk yet
// when ?missing=true.
func (ctrl *DownloadController) DownloadPlatform(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid platform id")
	}
	missing, _ := strconv.ParseBool(c.QueryParam("missing"))

	items, err := ctrl.App.PlatformItems(c.Request().Context(), id, missing)
	if err != nil {
		return respondError(c, err)
	}
	return ctrl.queue(c, items)
}

func (ctrl *DownloadController) DownloadFirmware(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid platform id")
	}

	items, err := ctrl.App.FirmwareItems(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ctrl.queue(c, items)
}

// CancelAll cancels every queued and running download.
func (ctrl *DownloadController) CancelAll(c *echo.Context) error {
	sid := ctrl.App.Engine.CancelAll()
	return c.JSON(http.StatusOK, SessionResponse{SessionID: sid})
}

func (ctrl *DownloadController) CancelJob(c *echo.Context) error {
	if err := ctrl.App.Engine.Cancel(c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Action runs a notification action such as "cancel_all".
func (ctrl *DownloadController) Action(c *echo.Context) error {
	if err := ctrl.App.Engine.Action(c.Param("key")); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (ctrl *DownloadController) queue(c *echo.Context, items []domain.Item) error {
	sid, err := ctrl.App.Engine.DownloadMany(c.Request().Context(), items)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, SessionResponse{SessionID: sid, Queued: len(items)})
}

package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/store"
	"github.com/labstack/echo/v5"
)

type SessionController struct {
	App *app.Context
}

// List returns the sessions the engine still tracks, oldest first.
func (ctrl *SessionController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.App.Engine.Sessions())
}

func (ctrl *SessionController) Get(c *echo.Context) error {
	id := c.Param("id")

	snap, err := ctrl.App.Engine.Snapshot(id)
	if err == nil {
		return c.JSON(http.StatusOK, SessionView{Live: &snap})
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return respondError(c, err)
	}

	// Released sessions live on in the ledger
	if ctrl.App.History != nil {
		rec, herr := ctrl.App.History.GetSession(c.Request().Context(), id)
		if herr != nil {
			return respondError(c, herr)
		}
		if rec != nil {
			return c.JSON(http.StatusOK, SessionView{History: rec})
		}
	}
	return respondError(c, err)
}

// History lists completed downloads, newest first. Supports ?kind=, ?platform= and ?limit=.
func (ctrl *SessionController) History(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, []domain.DownloadRecord{})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := ctrl.App.History.ListDownloads(c.Request().Context(), store.DownloadFilter{
		Kind:     domain.JobKind(c.QueryParam("kind")),
		Platform: c.QueryParam("platform"),
		Limit:    limit,
	})
	if err != nil {
		return respondError(c, err)
	}
	if recs == nil {
		recs = []domain.DownloadRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

func (ctrl *SessionController) SessionHistory(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, []domain.SessionRecord{})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := ctrl.App.History.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	if recs == nil {
		recs = []domain.SessionRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

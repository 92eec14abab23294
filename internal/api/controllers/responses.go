package controllers

import (
	"errors"
	"net/http"

	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/engine"
	"github.com/labstack/echo/v5"
)

type GamesRequest struct {
	IDs []int `json:"ids"`
}

type SettingsRequest struct {
	MaxConcurrentDownloads int `json:"max_concurrent_downloads"`
}

type SettingsResponse struct {
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
	DestinationRoot        string `json:"destination_root"`
}

// SessionResponse is returned by every call that starts or cancels downloads.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Queued    int    `json:"queued"`
}

// SessionView is a session as seen over the API: live while the engine still knows
// it, from the ledger afterwards.
type SessionView struct {
	Live    *domain.SessionSnapshot `json:"live,omitempty"`
	History *domain.SessionRecord   `json:"history,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps engine and client errors onto status codes.
func respondError(c *echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrNoItems):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrNoCatalog):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNetwork):
		status = http.StatusBadGateway
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

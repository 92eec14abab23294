package api

import (
	"github.com/datallboy/gorom/internal/api/controllers"
	"github.com/datallboy/gorom/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	dl := &controllers.DownloadController{App: app}
	sessions := &controllers.SessionController{App: app}
	settings := &controllers.SettingsController{App: app}

	g := e.Group("/api")

	// Starting and cancelling downloads
	g.POST("/downloads/games", dl.DownloadGames)
	g.POST("/downloads/games/:id", dl.DownloadGame)
	g.POST("/downloads/platforms/:id", dl.DownloadPlatform)
	g.POST("/downloads/firmware/:id", dl.DownloadFirmware)
	g.DELETE("/downloads", dl.CancelAll)
	g.DELETE("/jobs/:id", dl.CancelJob)
	g.POST("/actions/:key", dl.Action)

	// Progress and history
	g.GET("/sessions", sessions.List)
	g.GET("/sessions/:id", sessions.Get)
	g.GET("/history", sessions.History)
	g.GET("/history/sessions", sessions.SessionHistory)

	g.GET("/settings", settings.Get)
	g.PUT("/settings", settings.Update)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datallboy/gorom/internal/api"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	a, closeApp, err := setup(opts, notify.NewConsole(os.Stdout))
	if err != nil {
		return err
	}
	defer closeApp()

	// Cancelled when the user hits Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	api.RegisterRoutes(e, a)

	srv := &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: e,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("API listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down, cancelling outstanding downloads")
	a.Engine.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/datallboy/gorom/internal/app"
	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/spf13/cobra"
)

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download games or firmware and wait for them to finish",
	}

	var missing bool
	platform := &cobra.Command{
		Use:   "platform <platform-id>",
		Short: "Download every rom of a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDs(args)
			if err != nil {
				return err
			}
			return runDownload(opts, func(ctx context.Context, a *app.Context) ([]domain.Item, error) {
				return a.PlatformItems(ctx, id[0], missing)
			})
		},
	}
	platform.Flags().BoolVar(&missing, "missing", false, "only download roms not yet on disk")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "game <rom-id>...",
			Short: "Download one or more roms",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				return runDownload(opts, func(ctx context.Context, a *app.Context) ([]domain.Item, error) {
					return a.GameItems(ctx, ids)
				})
			},
		},
		platform,
		&cobra.Command{
			Use:   "firmware <platform-id>",
			Short: "Download every firmware file of a platform",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseIDs(args)
				if err != nil {
					return err
				}
				return runDownload(opts, func(ctx context.Context, a *app.Context) ([]domain.Item, error) {
					return a.FirmwareItems(ctx, id[0])
				})
			},
		},
	)
	return cmd
}

type resolveFunc func(ctx context.Context, a *app.Context) ([]domain.Item, error)

func runDownload(opts *rootOptions, resolve resolveFunc) error {
	host := notify.NewConsole(os.Stdout)
	a, closeApp, err := setup(opts, host)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := resolve(ctx, a)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Nothing to download.")
		return nil
	}

	var sid string
	if len(items) == 1 {
		sid, err = a.Engine.DownloadOne(ctx, items[0])
	} else {
		sid, err = a.Engine.DownloadMany(ctx, items)
	}
	if err != nil {
		return err
	}

	// Ctrl+C cancels everything; we still wait for the jobs to wind down
	go func() {
		<-ctx.Done()
		a.Engine.CancelAll()
	}()

	snap, err := a.Engine.Wait(context.Background(), sid)
	if err != nil {
		return err
	}

	fmt.Printf("%d completed, %d failed (%d cancelled), %d total\n", snap.Succeeded, snap.Failed-snap.Cancelled, snap.Cancelled, snap.Total)
	if snap.Failed > 0 {
		return fmt.Errorf("%d of %d downloads did not complete", snap.Failed, snap.Total)
	}
	return nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

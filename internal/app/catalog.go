package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/datallboy/gorom/internal/domain"
	"golang.org/x/sync/errgroup"
)

var ErrNoCatalog = errors.New("no RomM server configured")

// GameItems looks every rom id up and returns the items in the order given.
func (a *Context) GameItems(ctx context.Context, ids []int) ([]domain.Item, error) {
	if a.Catalog == nil {
		return nil, ErrNoCatalog
	}

	items := make([]domain.Item, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			game, err := a.Catalog.Game(gctx, id)
			if err != nil {
				return fmt.Errorf("rom %d: %w", id, err)
			}
			items[i] = game.Item()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// PlatformItems lists every rom of a platform. With missingOnly set, roms already
// present under the destination root are left out.
func (a *Context) PlatformItems(ctx context.Context, platformID int, missingOnly bool) ([]domain.Item, error) {
	if a.Catalog == nil {
		return nil, ErrNoCatalog
	}

	games, err := a.Catalog.Games(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("list platform %d: %w", platformID, err)
	}

	items := make([]domain.Item, 0, len(games))
	for _, g := range games {
		items = append(items, g.Item())
	}

	if !missingOnly {
		return items, nil
	}

	missing, err := a.Engine.Missing(items)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("%d of %d roms on platform %d are missing", len(missing), len(items), platformID)
	return missing, nil
}

func (a *Context) FirmwareItems(ctx context.Context, platformID int) ([]domain.Item, error) {
	if a.Catalog == nil {
		return nil, ErrNoCatalog
	}

	list, err := a.Catalog.FirmwareList(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("list firmware of platform %d: %w", platformID, err)
	}

	items := make([]domain.Item, 0, len(list))
	for _, fw := range list {
		it := fw.Item()
		if it.PlatformID == 0 {
			it.PlatformID = platformID
		}
		items = append(items, it)
	}
	return items, nil
}

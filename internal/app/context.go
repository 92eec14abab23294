package app

import (
	"context"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/engine"
	"github.com/datallboy/gorom/internal/infra/config"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/romm"
	"github.com/datallboy/gorom/internal/store"
)

// Catalog is the listing side of the RomM client, used to turn ids and platforms
// into download items.
type Catalog interface {
	Game(ctx context.Context, id int) (*romm.Game, error)
	Games(ctx context.Context, platformID int) ([]romm.Game, error)
	FirmwareList(ctx context.Context, platformID int) ([]romm.Firmware, error)
}

// History is the read side of the download ledger.
type History interface {
	ListDownloads(ctx context.Context, f store.DownloadFilter) ([]domain.DownloadRecord, error)
	ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error)
	GetSession(ctx context.Context, id string) (*domain.SessionRecord, error)
}

// Context holds the core environment and shared resources for gorom.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config   *config.Config
	Logger   *logger.Logger
	Settings *config.Settings

	Engine  *engine.Engine
	Catalog Catalog
	History History
}

// NewContext initializes the base environment. Services are attached by the caller.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:   cfg,
		Logger:   log,
		Settings: config.NewSettings(cfg),
	}
}

package app

import (
	"fmt"
	"path/filepath"

	"github.com/datallboy/gorom/internal/engine"
	"github.com/datallboy/gorom/internal/infra/config"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/notify"
	"github.com/datallboy/gorom/internal/romm"
	"github.com/datallboy/gorom/internal/scheduler"
	"github.com/datallboy/gorom/internal/storage"
	"github.com/datallboy/gorom/internal/store"
)

// Bootstrap wires the RomM client, the ledger, the scheduler and the engine from cfg.
// The returned close func cancels outstanding jobs and closes the ledger.
func Bootstrap(cfg *config.Config, log *logger.Logger, host notify.Notifier) (*Context, func(), error) {
	root, err := filepath.Abs(cfg.Download.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve download root %q: %w", cfg.Download.Root, err)
	}
	cfg.Download.Root = root

	ledger, err := store.NewPersistentStore(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}

	a := NewContext(cfg, log)
	client := romm.New(cfg.RomM.Host, cfg.RomM.Username, cfg.RomM.Password)
	sched := scheduler.New(log)

	a.Catalog = client
	a.History = ledger
	a.Engine = engine.New(engine.Options{
		Scheduler:      sched,
		Content:        client,
		Docs:           storage.NewOSProvider("/"),
		Notifier:       host,
		Settings:       a.Settings,
		Ledger:         ledger,
		Logger:         log,
		ChunkSize:      cfg.Download.ChunkSize,
		ProgressStep:   cfg.Download.ProgressStep,
		GracePeriod:    cfg.Notifications.GracePeriod,
		DismissSummary: cfg.Notifications.DismissSummary,
	})

	log.Info("Downloading to %s, at most %d at once, ledger on %s", root, cfg.Download.MaxConcurrent, ledger.Driver())

	closeFn := func() {
		sched.Shutdown()
		if err := ledger.Close(); err != nil {
			log.Warn("Closing ledger: %v", err)
		}
	}
	return a, closeFn, nil
}

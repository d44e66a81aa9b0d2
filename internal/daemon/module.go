// Package daemon composes the synchronization core into a runnable
// process: local store, remote gateway, sync engine and outbox drainer,
// wired through fx with the account lock held for the process lifetime.
package daemon

import (
	"context"

	"github.com/rmacedo/pigeon/internal/bus"
	"github.com/rmacedo/pigeon/internal/config"
	"github.com/rmacedo/pigeon/internal/lock"
	"github.com/rmacedo/pigeon/internal/logging"
	"github.com/rmacedo/pigeon/internal/outbox"
	"github.com/rmacedo/pigeon/internal/remote"
	"github.com/rmacedo/pigeon/internal/session"
	"github.com/rmacedo/pigeon/internal/store"
	intsync "github.com/rmacedo/pigeon/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	Account string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideConfig,
			provideLock,
			provideStore,
			provideGateway,
			provideReconciler,
			provideResolver,
			provideQueue,
			provideEngine,
			provideDrainer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.Account), p.Account)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Warn("config unreadable, using defaults", zap.Error(err))
		return config.Default()
	}
	return cfg
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(session.Dir(p.Account))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.Account)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGateway(cfg *config.Config) remote.Gateway {
	return remote.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout())
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger)
}

func provideResolver(db *store.DB, gw remote.Gateway, b *bus.Bus, logger *zap.Logger) *intsync.Resolver {
	return intsync.NewResolver(db, gw, b, logger)
}

func provideQueue(db *store.DB, b *bus.Bus, logger *zap.Logger) *outbox.Queue {
	return outbox.NewQueue(db, b, logger)
}

func provideEngine(p Params, db *store.DB, gw remote.Gateway, rec *intsync.Reconciler, res *intsync.Resolver, queue *outbox.Queue, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(p.Account, db, gw, rec, res, queue, b, logger)
}

func provideDrainer(db *store.DB, gw remote.Gateway, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Drainer {
	return outbox.NewDrainer(db, gw, b, cfg.Drain, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, engine *intsync.Engine, drainer *outbox.Drainer, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			drainer.Start(context.Background())
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			drainer.Stop()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

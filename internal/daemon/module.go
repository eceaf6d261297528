package daemon

import (
	"context"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/config"
	"github.com/BENZOOgataga/DeepSearch/internal/export"
	"github.com/BENZOOgataga/DeepSearch/internal/ingest"
	"github.com/BENZOOgataga/DeepSearch/internal/lock"
	"github.com/BENZOOgataga/DeepSearch/internal/logging"
	"github.com/BENZOOgataga/DeepSearch/internal/match"
	"github.com/BENZOOgataga/DeepSearch/internal/search"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
	"github.com/BENZOOgataga/DeepSearch/internal/stats"
	"github.com/BENZOOgataga/DeepSearch/internal/status"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
	"github.com/BENZOOgataga/DeepSearch/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keywordMemoSize = 10000
	keywordMemoTTL  = time.Hour
	historyPageCap  = 512
	historyPageTTL  = 10 * time.Minute
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideConfig,
			provideMatcher,
			provideWatchLog,
			provideAdapter,
			provideEngine,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.ArchiveDBPath(p.SessionName)
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
	logger.Info("archive initialized", zap.String("path", dbPath))
	return db, nil
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg := config.LoadOrDefault(session.ConfigPath())
	logger.Info("config loaded",
		zap.String("path", session.ConfigPath()),
		zap.Int("keywords", len(cfg.Keywords)))
	return cfg
}

func provideMatcher(cfg *config.Config) *match.KeywordMatcher {
	return match.NewKeywordMatcher(cfg.Keywords, keywordMemoSize, keywordMemoTTL)
}

func provideWatchLog(p Params) (*logging.WatchLog, error) {
	return logging.OpenWatchLog(session.WatchLogPath(p.SessionName))
}

func provideAdapter(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.SessionName, db, b, logger)
}

func provideEngine(cfg *config.Config, db *store.DB, b *bus.Bus, matcher *match.KeywordMatcher, watchLog *logging.WatchLog, logger *zap.Logger) *ingest.Engine {
	engine := ingest.NewEngine(db, b, matcher, watchLog, logger)
	engine.SetEcho(cfg.PrintMessages, cfg.PrintUsers)
	return engine
}

func provideService(
	p Params,
	adapter *wa.Adapter,
	db *store.DB,
	b *bus.Bus,
	machine *status.Machine,
	matcher *match.KeywordMatcher,
	cfg *config.Config,
	logger *zap.Logger,
) *api.Service {
	return api.NewService(api.Deps{
		Client:     adapter,
		History:    search.NewHistoryCache(adapter, historyPageCap, historyPageTTL),
		Registry:   search.NewRegistry(),
		Cooldown:   search.NewCooldownGate(time.Duration(cfg.CooldownMinutes) * time.Minute),
		Stats:      stats.Load(session.StatsPath(p.SessionName)),
		Exporter:   export.New(session.ExportDir(p.SessionName)),
		Matcher:    matcher,
		Machine:    machine,
		DB:         db,
		Bus:        b,
		Logger:     logger,
		Config:     cfg,
		ConfigPath: session.ConfigPath(),
	})
}

// runQRAuth drives the pairing flow until it resolves one way or the
// other. Each code is rendered to the session's qr.png; the operator
// scans it from there.
func runQRAuth(adapter *wa.Adapter, logger *zap.Logger) {
	events, err := adapter.StartQRAuth(context.Background())
	if err != nil {
		logger.Error("QR auth unavailable", zap.Error(err))
		return
	}
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			logger.Info("pairing QR generated, scan to link")
		case wa.AuthEventAuthenticated:
			logger.Info("device paired")
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			logger.Warn("pairing not completed", zap.String("reason", evt.Message))
		}
	}
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, adapter *wa.Adapter, engine *ingest.Engine, svc *api.Service, watchLog *logging.WatchLog, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	scheduler := NewScheduler(svc, logger)
	var stopWatch func()

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start ingest engine (subscribes to platform.* bus events).
			engine.Start(context.Background())

			// Register event handler for whatsmeow events.
			handler := wa.NewEventHandler(b, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Start control API in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control API error", zap.Error(err))
				}
			}()

			// Pick up edits to the shared config without a restart.
			stop, err := config.Watch(session.ConfigPath(), func(cfg *config.Config) {
				svc.ReloadConfig(cfg)
				engine.SetEcho(cfg.PrintMessages, cfg.PrintUsers)
			})
			if err != nil {
				logger.Warn("config watch unavailable", zap.Error(err))
			} else {
				stopWatch = stop
			}

			scheduler.Start()

			// Transition state based on auth status.
			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
				go runQRAuth(adapter, logger)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			if stopWatch != nil {
				stopWatch()
			}
			engine.Stop()
			adapter.Disconnect()
			srv.Stop(ctx)
			if err := watchLog.Close(); err != nil {
				logger.Warn("error closing watch log", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

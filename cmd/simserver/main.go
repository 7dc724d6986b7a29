// Package main runs the headless dungeon simulation with its spectator feed,
// gRPC control service and optional run-results store.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/config"
	"github.com/cory-johannsen/rogue/internal/feed"
	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/dice"
	"github.com/cory-johannsen/rogue/internal/game/ruleset"
	"github.com/cory-johannsen/rogue/internal/game/sim"
	"github.com/cory-johannsen/rogue/internal/game/world"
	"github.com/cory-johannsen/rogue/internal/gameserver"
	"github.com/cory-johannsen/rogue/internal/observability"
	"github.com/cory-johannsen/rogue/internal/results"
	"github.com/cory-johannsen/rogue/internal/scripting"
	"github.com/cory-johannsen/rogue/internal/server"
	"github.com/cory-johannsen/rogue/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	src := dice.NewCryptoSource()
	if cfg.Sim.Seed != 0 {
		src = dice.NewSeededSource(cfg.Sim.Seed)
		logger.Info("using seeded dice", zap.Uint64("seed", cfg.Sim.Seed))
	}
	roller := dice.NewLoggedRoller(src, logger)
	clk := clock.Real()
	metrics := observability.NewMetrics()

	// Content
	contentStart := time.Now()
	catalog, err := ruleset.LoadCatalog(cfg.Content.ClassesDir)
	if err != nil {
		logger.Fatal("loading classes", zap.Error(err))
	}
	floors, err := world.LoadLibrary(cfg.Content.FloorsDir)
	if err != nil {
		logger.Fatal("loading floors", zap.Error(err))
	}
	scripts := scripting.NewManager(roller, logger.Named("scripting"))
	defer scripts.Close()
	names, err := scripts.LoadDir(ctx, cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit)
	if err != nil {
		logger.Fatal("loading pattern scripts", zap.Error(err))
	}
	patterns := ai.NewRegistry()
	if err := scripts.RegisterPatterns(patterns); err != nil {
		logger.Fatal("registering pattern scripts", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Strings("patterns", names),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	engine, err := sim.New(sim.Options{
		Config: sim.Config{
			TickInterval:    cfg.Sim.TickInterval,
			NotifyInterval:  cfg.Sim.NotifyInterval,
			DisposeGrace:    cfg.Sim.DisposeGrace,
			FloorTransition: cfg.Sim.FloorTransition,
			StartClass:      cfg.Sim.StartClass,
			PlayerName:      cfg.Sim.PlayerName,
		},
		Clock:    clk,
		Logger:   logger,
		Roller:   roller,
		Catalog:  catalog,
		Floors:   floors,
		Patterns: patterns,
		Metrics:  metrics,
	})
	if err != nil {
		logger.Fatal("creating engine", zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger, server.DefaultShutdownTimeout)

	// Results are recorded only when a database is configured.
	var (
		recorder *results.Recorder
		database feed.Pinger
	)
	if cfg.Results.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		recorder = results.NewRecorder(postgres.NewRunRepository(pool.DB()), engine, clk, logger, metrics)
		engine.Subscribe(recorder)
		lifecycle.Add("results", recorder)
		database = pool
	}

	lifecycle.Add("engine", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			if err := engine.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
		StopFn: func(context.Context) {
			if recorder != nil {
				if err := recorder.Abandon(engine.Summary()); err != nil {
					logger.Warn("recording abandoned run", zap.Error(err))
				}
			}
			engine.Dispose()
		},
	})

	hub := feed.NewHub(feed.HubConfig{
		StateRate:  cfg.HTTP.StateRate,
		SendBuffer: cfg.HTTP.SendBuffer,
	}, clk, logger, metrics, engine)
	engine.Subscribe(hub)
	router := feed.NewRouter(feed.RouterConfig{Hub: hub, Metrics: metrics.Handler(), Liveness: engine, Database: database})
	lifecycle.Add("feed", feed.NewServer(cfg.HTTP.Addr(), router, hub, logger))

	control := gameserver.NewControlService(engine, clk, logger)
	lifecycle.Add("control", gameserver.NewServer(cfg.Control.Addr(), control, logger))

	logger.Info("simulation server initialized",
		zap.String("class", cfg.Sim.StartClass),
		zap.String("feed_addr", cfg.HTTP.Addr()),
		zap.String("control_addr", cfg.Control.Addr()),
		zap.Bool("results", cfg.Results.Enabled),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("simulation server stopped", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/api"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/config"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/geodesy"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/logging"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/metrics"
	contactNats "github.com/sgerhart/aegisflux/backend/contactmgr/internal/nats"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/node"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/state"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/store"
)

func main() {
	// A missing .env is fine; the environment may be set directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.Ownship)
	slog.SetDefault(logger)

	logger.Info("Starting contact manager")
	logger.Info("Configuration loaded",
		"mission_file", cfg.MissionFile,
		"http_addr", cfg.HTTPAddr,
		"nats_url", cfg.NATSURL,
		"subject_prefix", cfg.SubjectPrefix,
		"app_tick", cfg.AppTick,
		"rules_dir", cfg.RulesDir,
		"hot_reload", cfg.HotReload,
		"redis_addr", cfg.RedisAddr,
		"max_events", cfg.MaxEvents,
		"params", len(cfg.Params))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the engine
	var opts []engine.Option
	if cfg.HasOrigin() {
		geo, err := geodesy.New(*cfg.LatOrigin, *cfg.LonOrigin)
		if err != nil {
			logger.Warn("Geodesy init failed", "error", err)
		} else {
			opts = append(opts, engine.WithGeodesy(geo))
		}
	}
	if lookup, ok := engine.LookupByName(cfg.ThresholdLookup); ok {
		opts = append(opts, engine.WithThresholdLookup(lookup))
	} else {
		logger.Warn("Unknown threshold lookup, using alert_id", "threshold_lookup", cfg.ThresholdLookup)
	}

	eng, err := engine.New(cfg.Ownship, logger, opts...)
	if err != nil {
		logger.Error("Failed to create engine", "error", err)
		os.Exit(1)
	}

	prometheusMetrics := metrics.NewMetrics()
	for range eng.Configure(cfg.Params) {
		prometheusMetrics.IncWarnings("config")
	}

	memoryStore := store.NewMemoryStore(cfg.MaxEvents, cfg.IndexCap)
	logger.Info("Memory store initialized", "max_events", cfg.MaxEvents, "index_cap", cfg.IndexCap)

	// Connect to NATS
	nc, err := contactNats.Connect(cfg.NATSURL, "contactmgr-"+cfg.Ownship, logger)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	bus := contactNats.NewBus(nc, cfg.SubjectPrefix, logger)

	runnerOpts := []node.Option{
		node.WithPublisher(bus),
		node.WithAlertSink(memoryStore),
		node.WithMetrics(prometheusMetrics),
	}

	// Optional alert rules directory
	if cfg.RulesDir != "" {
		ruleLoader := rules.NewLoader(cfg.RulesDir, cfg.HotReload, cfg.DebounceMs, logger)
		if _, err := ruleLoader.LoadSnapshot(); err != nil {
			logger.Error("Failed to load initial alert rules", "error", err)
			os.Exit(1)
		}
		if err := ruleLoader.WatchForChanges(ctx); err != nil {
			logger.Error("Failed to start rule watcher", "error", err)
			os.Exit(1)
		}
		runnerOpts = append(runnerOpts, node.WithRuleSource(ruleLoader))
	}

	// Optional Redis state mirror
	checks := []api.ReadinessCheck{{Name: "nats", Ready: bus.IsReady}}
	if cfg.RedisAddr != "" {
		mirror, err := state.NewRedisMirror(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.Ownship, cfg.StateTTL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, state mirror disabled", "error", err)
		} else {
			defer mirror.Close()
			writer := state.NewStateWriter(mirror, logger)
			go writer.Run(ctx)
			runnerOpts = append(runnerOpts, node.WithStateSink(writer))
			checks = append(checks, api.ReadinessCheck{Name: "redis", Ready: func() bool {
				pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
				defer pingCancel()
				return mirror.Ping(pingCtx) == nil
			}})
		}
	}

	runner := node.NewRunner(eng, cfg.TickInterval(), logger, runnerOpts...)

	// Create HTTP server
	httpAPI := api.NewHTTPAPI(runner, memoryStore, prometheusMetrics, logger, checks...)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpAPI.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the runner before the bus so no mail is refused
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if err := runner.Run(ctx); err != nil {
			logger.Error("Runner error", "error", err)
		}
	}()

	// Start NATS subscriber
	go func() {
		if err := bus.Subscribe(ctx, runner, engine.Subscriptions); err != nil {
			logger.Error("NATS subscriber error", "error", err)
		}
	}()

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Contact manager started successfully")
	<-sigChan

	logger.Info("Shutting down contact manager...")

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Cancel context to stop the subscriber, runner and watchers
	cancel()
	<-runnerDone

	if err := nc.Drain(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}

	logger.Info("Contact manager stopped")
}

package main

import (
	"context"
	"errors"
	"flag"

	"social_scheduler/internal/app"
	"social_scheduler/internal/scheduler"
	"social_scheduler/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := app.SetupLogger("info")

	cfg, err := app.LoadConfig(*configPath, logger)
	if err != nil {
		app.Fatal(logger, 0, "failed to load config", err)
	}

	logger = app.SetupLogger(cfg.LogLevel).With("service", service.LoopMonitor)

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		app.Fatal(logger, cfg.FatalCooldown, "failed to initialize", err)
	}
	defer deps.Close()

	monitor, err := deps.MonitorService(ctx)
	if err != nil {
		deps.Close()
		app.Fatal(logger, cfg.FatalCooldown, "failed to initialize monitor", err)
	}

	if cfg.Monitor.MetricsAddr != "" {
		go deps.Metrics.Serve(ctx, cfg.Monitor.MetricsAddr, logger)
	}

	sched := scheduler.NewScheduler(
		service.LoopMonitor,
		monitor,
		cfg.Monitor.Interval,
		cfg.Monitor.TickTimeout,
		deps.Metrics,
		logger,
	)

	logger.Info("starting comment monitor",
		"store", cfg.Store.Path,
		"interval", cfg.Monitor.Interval,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		deps.Close()
		app.Fatal(logger, cfg.FatalCooldown, "monitor error", err)
	}
}

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

	logger = app.SetupLogger(cfg.LogLevel).With("service", service.LoopScheduler)

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		app.Fatal(logger, cfg.FatalCooldown, "failed to initialize", err)
	}
	defer deps.Close()

	if cfg.Scheduler.MetricsAddr != "" {
		go deps.Metrics.Serve(ctx, cfg.Scheduler.MetricsAddr, logger)
	}

	sched := scheduler.NewScheduler(
		service.LoopScheduler,
		deps.PublishService(),
		cfg.Scheduler.Interval,
		cfg.Scheduler.TickTimeout,
		deps.Metrics,
		logger,
	)

	logger.Info("starting post scheduler",
		"store", cfg.Store.Path,
		"interval", cfg.Scheduler.Interval,
		"platforms", deps.Platforms.Platforms(),
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		deps.Close()
		app.Fatal(logger, cfg.FatalCooldown, "scheduler error", err)
	}
}

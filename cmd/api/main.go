package main

import (
	"flag"

	"social_scheduler/internal/api"
	"social_scheduler/internal/app"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := app.SetupLogger("info")

	cfg, err := app.LoadConfig(*configPath, logger)
	if err != nil {
		app.Fatal(logger, 0, "failed to load config", err)
	}

	logger = app.SetupLogger(cfg.LogLevel).With("service", "api")

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		app.Fatal(logger, cfg.FatalCooldown, "failed to initialize", err)
	}
	defer deps.Close()

	var history api.History
	if j := deps.History(); j != nil {
		history = j
	}

	handler := api.NewHandler(deps.ScheduleService(), deps.PublishService(), history, logger)

	if err := api.Serve(ctx, cfg.API.Addr, handler.Routes(deps.Metrics.Handler()), logger); err != nil {
		deps.Close()
		app.Fatal(logger, cfg.FatalCooldown, "api server error", err)
	}
}

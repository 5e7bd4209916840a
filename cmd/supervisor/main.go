package main

import (
	"flag"
	"os"
	"path/filepath"

	"social_scheduler/internal/app"
	"social_scheduler/internal/config"
	"social_scheduler/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := app.SetupLogger("info")

	cfg, err := app.LoadConfig(*configPath, logger)
	if err != nil {
		app.Fatal(logger, 0, "failed to load config", err)
	}

	logger = app.SetupLogger(cfg.LogLevel).With("service", "supervisor")

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	children, err := childrenFor(cfg, *configPath)
	if err != nil {
		app.Fatal(logger, cfg.FatalCooldown, "failed to resolve children", err)
	}

	m := app.NewMetrics()
	if cfg.Supervisor.MetricsAddr != "" {
		go m.Serve(ctx, cfg.Supervisor.MetricsAddr, logger)
	}

	sup := supervisor.New(children, supervisor.ExecStarter{Stdout: os.Stdout, Stderr: os.Stderr}, supervisor.Config{
		InitialBackoff: cfg.Supervisor.InitialBackoff,
		MaxBackoff:     cfg.Supervisor.MaxBackoff,
		StableAfter:    cfg.Supervisor.StableAfter,
		StopTimeout:    cfg.Supervisor.StopTimeout,
	}, m, logger)

	if err := sup.Run(ctx); err != nil {
		app.Fatal(logger, cfg.FatalCooldown, "supervisor error", err)
	}
}

// childrenFor returns the configured children, or the sibling scheduler,
// monitor and api binaries sharing this process's config file.
func childrenFor(cfg *config.Config, configPath string) ([]supervisor.Child, error) {
	if len(cfg.Supervisor.Children) > 0 {
		children := make([]supervisor.Child, 0, len(cfg.Supervisor.Children))
		for _, c := range cfg.Supervisor.Children {
			children = append(children, supervisor.Child{Name: c.Name, Command: c.Command, Args: c.Args})
		}
		return children, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(exe)

	var children []supervisor.Child
	for _, name := range []string{"scheduler", "monitor", "api"} {
		children = append(children, supervisor.Child{
			Name:    name,
			Command: filepath.Join(dir, name),
			Args:    []string{"-config", configPath},
		})
	}
	return children, nil
}

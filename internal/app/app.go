// Package app builds the components every binary shares from the loaded
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"social_scheduler/internal/config"
	"social_scheduler/internal/metrics"
	"social_scheduler/internal/notify"
	"social_scheduler/internal/platform"
	"social_scheduler/internal/platform/linkedin"
	"social_scheduler/internal/platform/twitter"
	"social_scheduler/internal/publisher"
	"social_scheduler/internal/responder"
	"social_scheduler/internal/service"
	"social_scheduler/internal/storage/jsonfile"
	"social_scheduler/internal/storage/memory"
	"social_scheduler/internal/storage/postgres"
)

// Deps holds the shared components. Events and Journal stay nil when their
// integration is not configured.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Store     service.ScheduleStore
	Snapshots service.SnapshotStore
	Platforms *platform.Registry
	Events    service.EventPublisher
	Journal   *postgres.Journal

	closers []func() error
}

func SetupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// LoadConfig reads path, falling back to defaults plus environment when the
// file does not exist.
func LoadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	return cfg, err
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// Fatal logs err, waits out the cooldown so a supervisor does not spin, and
// exits with status 1.
func Fatal(logger *slog.Logger, cooldown time.Duration, msg string, err error) {
	logger.Error(msg, "error", err, "cooldown", cooldown)
	time.Sleep(cooldown)
	os.Exit(1)
}

// NewMetrics creates the process metrics on a fresh registry together with
// the Go runtime collectors.
func NewMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return metrics.New(reg)
}

func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: NewMetrics(),
	}

	if err := d.buildStores(); err != nil {
		return nil, err
	}
	d.Platforms = d.buildPlatforms()

	if cfg.RabbitMQ.Enabled() {
		events, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		d.Events = events
		d.closers = append(d.closers, events.Close)
		logger.Info("event publisher enabled", "exchange", cfg.RabbitMQ.Exchange)
	}

	if cfg.Database.Enabled() {
		db, err := postgres.Open(ctx, cfg.Database.DSN())
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
		d.Journal = postgres.NewJournal(db)
		d.closers = append(d.closers, d.Journal.Close)
		logger.Info("activity journal enabled", "host", cfg.Database.Host)
	}

	return d, nil
}

func (d *Deps) buildStores() error {
	switch d.Config.Store.Backend {
	case "memory":
		d.Logger.Warn("using in-memory store, nothing will be persisted")
		d.Store = memory.NewScheduleStore()
		d.Snapshots = memory.NewSnapshotStore()
	default:
		snapshots, err := jsonfile.NewSnapshotStore(d.Config.Store.CommentsDir, d.Config.Store.ResponsesDir, d.Logger)
		if err != nil {
			return fmt.Errorf("init snapshot store: %w", err)
		}
		d.Store = jsonfile.NewScheduleStore(d.Config.Store.Path, d.Logger)
		d.Snapshots = snapshots
	}
	return nil
}

func (d *Deps) buildPlatforms() *platform.Registry {
	pc := d.Config.Platforms
	retry := platform.RetryConfig{
		MaxAttempts:    pc.Retry.MaxAttempts,
		InitialBackoff: pc.Retry.InitialBackoff,
		MaxBackoff:     pc.Retry.MaxBackoff,
	}

	var adapters []platform.Adapter
	if pc.LinkedIn.Enabled() {
		adapters = append(adapters, linkedin.New(linkedin.Config{
			BaseURL:     pc.LinkedIn.BaseURL,
			AccessToken: pc.LinkedIn.AccessToken,
			Timeout:     pc.Timeout,
			Retry:       retry,
		}, d.Logger))
	} else {
		d.Logger.Warn("linkedin credentials missing, adapter disabled")
	}

	if pc.Twitter.Enabled() {
		adapters = append(adapters, twitter.New(twitter.Config{
			BaseURL:           pc.Twitter.BaseURL,
			UploadURL:         pc.Twitter.UploadURL,
			APIKey:            pc.Twitter.APIKey,
			APISecret:         pc.Twitter.APISecret,
			AccessToken:       pc.Twitter.AccessToken,
			AccessTokenSecret: pc.Twitter.AccessTokenSecret,
			Timeout:           pc.Timeout,
			Retry:             retry,
		}, d.Logger))
	} else {
		d.Logger.Warn("twitter credentials missing, adapter disabled")
	}

	return platform.NewRegistry(adapters...)
}

// journal avoids handing a typed nil to the services.
func (d *Deps) journal() service.Journal {
	if d.Journal == nil {
		return nil
	}
	return d.Journal
}

// History is the journal as seen by the API, or nil.
func (d *Deps) History() *postgres.Journal {
	return d.Journal
}

func (d *Deps) PublishService() *service.PublishService {
	return service.NewPublishService(d.Store, d.Platforms, d.Events, d.journal(), d.Metrics, d.Logger)
}

// ScheduleService validates platforms by name only, so posts can be queued
// from a host that does not hold the platform credentials.
func (d *Deps) ScheduleService() *service.ScheduleService {
	return service.NewScheduleService(d.Store, d.Snapshots, nil, d.Logger)
}

// MonitorService builds the monitor with the optional response generator and
// operator notifier.
func (d *Deps) MonitorService(ctx context.Context) (*service.MonitorService, error) {
	var generator service.ResponseGenerator
	if d.Config.LLM.APIKey != "" {
		gemini, err := responder.NewGemini(ctx, responder.Config{
			APIKey:        d.Config.LLM.APIKey,
			Model:         d.Config.LLM.Model,
			FallbackModel: d.Config.LLM.FallbackModel,
		}, d.Logger)
		if err != nil {
			return nil, fmt.Errorf("init response generator: %w", err)
		}
		generator = gemini
	} else {
		d.Logger.Warn("llm api key missing, responses will not be generated")
	}

	var notifier service.Notifier
	if d.Config.Telegram.Enabled() {
		tg, err := notify.NewTelegram(d.Config.Telegram.Token, d.Config.Telegram.ChatID, d.Logger)
		if err != nil {
			return nil, fmt.Errorf("init telegram notifier: %w", err)
		}
		notifier = tg
	}

	return service.NewMonitorService(
		d.Store,
		d.Snapshots,
		d.Platforms,
		generator,
		notifier,
		d.Events,
		d.journal(),
		d.Metrics,
		d.Logger,
	), nil
}

// Close releases the optional integrations in reverse order.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Warn("failed to close resource", "error", err)
		}
	}
	d.closers = nil
}

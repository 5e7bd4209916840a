package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social_scheduler/internal/domain"
)

const namespace = "social_scheduler"

// Metrics groups the collectors shared by the loops, the API and the
// supervisor. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Ticks         *prometheus.CounterVec
	TickErrors    *prometheus.CounterVec
	TickDuration  *prometheus.HistogramVec
	Posts         *prometheus.CounterVec
	Responses     *prometheus.CounterVec
	ChildRestarts *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Passing prometheus.NewRegistry() keeps
// tests independent of the global registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of poll loop ticks",
		}, []string{"loop"}),
		TickErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Total number of per-post or per-tick errors",
		}, []string{"loop"}),
		TickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Poll loop tick duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"}),
		Posts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_transitions_total",
			Help:      "Posts moved out of the scheduled state",
		}, []string{"platform", "status"}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_generated_total",
			Help:      "Comment responses produced by the response generator",
		}, []string{"platform"}),
		ChildRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "child_restarts_total",
			Help:      "Supervised child process restarts",
		}, []string{"child"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveTick(stats *domain.TickStats, err error) {
	if m == nil || stats == nil {
		return
	}
	m.Ticks.WithLabelValues(stats.Loop).Inc()
	m.TickDuration.WithLabelValues(stats.Loop).Observe(stats.Duration.Seconds())
	errs := stats.Errors
	if err != nil {
		errs++
	}
	if errs > 0 {
		m.TickErrors.WithLabelValues(stats.Loop).Add(float64(errs))
	}
}

func (m *Metrics) PostTransition(platform domain.Platform, status domain.Status) {
	if m == nil {
		return
	}
	m.Posts.WithLabelValues(string(platform), string(status)).Inc()
}

func (m *Metrics) ResponsesGenerated(platform domain.Platform, n int) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(string(platform)).Add(float64(n))
}

func (m *Metrics) ChildRestarted(name string) {
	if m == nil {
		return
	}
	m.ChildRestarts.WithLabelValues(name).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", "error", err)
	}
}

// Package supervisor keeps the long-running child processes alive,
// restarting crashed children with exponential backoff.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"social_scheduler/internal/metrics"
)

type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateBackoff  State = "backoff"
	StateStopped  State = "stopped"
)

type Child struct {
	Name    string
	Command string
	Args    []string
}

type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StableAfter    time.Duration
	StopTimeout    time.Duration
}

// Status is a point-in-time view of one child.
type Status struct {
	State    State
	Pid      int
	Restarts int
}

type Supervisor struct {
	children []Child
	starter  Starter
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	status map[string]Status
}

func New(children []Child, starter Starter, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Supervisor {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}

	status := make(map[string]Status, len(children))
	for _, c := range children {
		status[c.Name] = Status{State: StateStopped}
	}

	return &Supervisor{
		children: children,
		starter:  starter,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With("component", "supervisor"),
		status:   status,
	}
}

// Run supervises every child until ctx is done, then stops them all.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.children) == 0 {
		return fmt.Errorf("no children configured")
	}

	s.logger.Info("supervisor started", "children", len(s.children))

	var wg sync.WaitGroup
	for _, child := range s.children {
		wg.Add(1)
		go func(child Child) {
			defer wg.Done()
			s.supervise(ctx, child)
		}(child)
	}
	wg.Wait()

	s.logger.Info("supervisor stopped")
	return nil
}

func (s *Supervisor) Status(name string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[name]
}

func (s *Supervisor) setState(name string, state State, pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[name]
	st.State = state
	st.Pid = pid
	s.status[name] = st
}

func (s *Supervisor) countRestart(name string) {
	s.mu.Lock()
	st := s.status[name]
	st.Restarts++
	s.status[name] = st
	s.mu.Unlock()

	s.metrics.ChildRestarted(name)
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// supervise keeps one child running until ctx is done.
func (s *Supervisor) supervise(ctx context.Context, child Child) {
	logger := s.logger.With("child", child.Name)
	delays := s.newBackOff()

	for {
		s.setState(child.Name, StateStarting, 0)

		proc, err := s.starter.Start(child)
		if err != nil {
			logger.Error("failed to start child", "command", child.Command, "error", err)
		} else {
			s.setState(child.Name, StateRunning, proc.Pid())
			logger.Info("child started", "pid", proc.Pid())

			started := time.Now()
			done := make(chan error, 1)
			go func() { done <- proc.Wait() }()

			select {
			case <-ctx.Done():
				s.stop(logger, proc, done)
				s.setState(child.Name, StateStopped, 0)
				return
			case err := <-done:
				uptime := time.Since(started)
				logger.Warn("child exited", "pid", proc.Pid(), "uptime", uptime, "error", err)
				if s.cfg.StableAfter > 0 && uptime >= s.cfg.StableAfter {
					delays.Reset()
				}
			}
		}

		delay := delays.NextBackOff()
		s.setState(child.Name, StateBackoff, 0)
		logger.Info("restarting child after delay", "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setState(child.Name, StateStopped, 0)
			return
		case <-timer.C:
		}

		s.countRestart(child.Name)
	}
}

// stop sends SIGTERM and falls back to SIGKILL after the stop timeout.
func (s *Supervisor) stop(logger *slog.Logger, proc Process, done <-chan error) {
	logger.Info("stopping child", "pid", proc.Pid())

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		logger.Warn("failed to signal child", "error", err)
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
	}

	logger.Warn("child did not stop in time, killing", "timeout", s.cfg.StopTimeout)
	if err := proc.Kill(); err != nil {
		logger.Error("failed to kill child", "error", err)
	}
	<-done
}

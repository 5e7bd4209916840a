package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/metrics"
)

const LoopMonitor = "monitor"

// MonitorService polls published posts for comments and asks the response
// generator to answer them.
//
// A post has new comments when the platform returns more comments than the
// last saved snapshot holds. Identity is not compared: the generator always
// receives the full current list, so earlier comments get fresh responses
// whenever the count grows.
type MonitorService struct {
	store     ScheduleStore
	snapshots SnapshotStore
	platforms Platforms
	generator ResponseGenerator
	notifier  Notifier
	events    EventPublisher
	journal   Journal
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitorService wires the monitor tick. generator, notifier, events,
// journal and m may be nil.
func NewMonitorService(
	store ScheduleStore,
	snapshots SnapshotStore,
	platforms Platforms,
	generator ResponseGenerator,
	notifier Notifier,
	events EventPublisher,
	journal Journal,
	m *metrics.Metrics,
	logger *slog.Logger,
) *MonitorService {
	return &MonitorService{
		store:     store,
		snapshots: snapshots,
		platforms: platforms,
		generator: generator,
		notifier:  notifier,
		events:    events,
		journal:   journal,
		metrics:   m,
		logger:    logger.With("loop", LoopMonitor),
		now:       time.Now,
	}
}

func (s *MonitorService) Tick(ctx context.Context) (*domain.TickStats, error) {
	stats := &domain.TickStats{Loop: LoopMonitor, StartedAt: s.now()}

	schedule := s.store.Load(ctx)

	for _, post := range schedule.Posts {
		if ctx.Err() != nil {
			break
		}
		if post.Status != domain.StatusPublished || post.PlatformPostID == nil || *post.PlatformPostID == "" {
			continue
		}
		stats.Checked++

		responded, err := s.checkPost(ctx, post)
		if err != nil {
			s.logger.Error("failed to check comments",
				"post_id", post.ID,
				"platform", post.Platform,
				"platform_post_id", *post.PlatformPostID,
				"error", err,
			)
			stats.Errors++
			continue
		}
		if responded {
			stats.Responded++
		}
	}

	stats.Duration = s.now().Sub(stats.StartedAt)
	if s.journal != nil {
		if err := s.journal.RecordTick(ctx, stats); err != nil {
			s.logger.Warn("failed to journal tick", "error", err)
		}
	}

	s.logger.Info("monitor tick completed",
		"checked", stats.Checked,
		"responded", stats.Responded,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, ctx.Err()
}

// checkPost reports whether responses were generated for the post.
func (s *MonitorService) checkPost(ctx context.Context, post *domain.Post) (responded bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			responded = false
			err = fmt.Errorf("panic while checking comments: %v", r)
		}
	}()

	platformPostID := *post.PlatformPostID
	logger := s.logger.With("post_id", post.ID, "platform", post.Platform, "platform_post_id", platformPostID)

	current, err := s.platforms.GetComments(ctx, post.Platform, platformPostID)
	if err != nil {
		return false, fmt.Errorf("fetch comments: %w", err)
	}
	if len(current) == 0 {
		logger.Debug("no comments found")
		return false, nil
	}

	previous, err := s.snapshots.LoadComments(ctx, platformPostID)
	if err != nil {
		logger.Warn("failed to load comment snapshot, treating as empty", "error", err)
		previous = nil
	}

	if len(current) <= len(previous) {
		logger.Debug("no new comments", "current", len(current), "previous", len(previous))
		return false, nil
	}

	logger.Info("new comments found", "current", len(current), "previous", len(previous))

	if err := s.snapshots.SaveComments(ctx, platformPostID, current); err != nil {
		return false, fmt.Errorf("save comment snapshot: %w", err)
	}

	if s.generator == nil {
		logger.Warn("no response generator configured, skipping responses")
		return false, nil
	}

	responses, err := s.generator.Generate(ctx, post.Platform, platformPostID, current)
	if err != nil {
		return false, fmt.Errorf("generate responses: %w", err)
	}

	if err := s.snapshots.SaveResponses(ctx, platformPostID, responses); err != nil {
		return false, fmt.Errorf("save responses: %w", err)
	}

	logger.Info("generated responses", "comments", len(current), "responses", len(responses))
	s.metrics.ResponsesGenerated(post.Platform, len(responses))
	s.announce(ctx, logger, post, current, responses)

	return true, nil
}

func (s *MonitorService) announce(ctx context.Context, logger *slog.Logger, post *domain.Post, comments []domain.Comment, responses []domain.Response) {
	if s.notifier != nil {
		if err := s.notifier.NotifyResponses(ctx, post, comments, responses); err != nil {
			logger.Warn("failed to notify operator", "error", err)
		}
	}

	if s.events != nil {
		event := &domain.Event{
			Action:        domain.EventResponded,
			Post:          post.Clone(),
			CommentCount:  len(comments),
			ResponseCount: len(responses),
			Timestamp:     s.now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			logger.Warn("failed to publish responded event", "error", err)
		}
	}
}

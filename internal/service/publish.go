package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/metrics"
)

const LoopScheduler = "scheduler"

const errEmptyPostID = "adapter returned empty post id"

// PublishService moves due posts from scheduled to published or failed.
type PublishService struct {
	store     ScheduleStore
	platforms Platforms
	events    EventPublisher
	journal   Journal
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublishService wires the scheduler tick. events, journal and m may be nil.
func NewPublishService(
	store ScheduleStore,
	platforms Platforms,
	events EventPublisher,
	journal Journal,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PublishService {
	return &PublishService{
		store:     store,
		platforms: platforms,
		events:    events,
		journal:   journal,
		metrics:   m,
		logger:    logger.With("loop", LoopScheduler),
		now:       time.Now,
	}
}

// Tick publishes every scheduled post that is due. The store is saved after
// each transition so a crash loses at most the post in flight.
func (s *PublishService) Tick(ctx context.Context) (*domain.TickStats, error) {
	stats := &domain.TickStats{Loop: LoopScheduler, StartedAt: s.now()}

	schedule := s.store.Load(ctx)

	for _, post := range schedule.Posts {
		if ctx.Err() != nil {
			break
		}
		if post.Status != domain.StatusScheduled {
			continue
		}
		stats.Checked++

		due, err := post.IsDue(s.now())
		if err != nil {
			s.logger.Error("failed to check if post is due",
				"post_id", post.ID,
				"schedule_time", post.ScheduleTime,
				"error", err,
			)
			stats.Errors++
			continue
		}
		if !due {
			continue
		}

		s.logger.Info("publishing scheduled post", "post_id", post.ID, "platform", post.Platform)
		if !s.publish(ctx, post) {
			break
		}

		if post.Status == domain.StatusPublished {
			stats.Published++
		} else {
			stats.Failed++
		}

		if err := s.store.Save(ctx, schedule); err != nil {
			stats.Errors++
		}
		s.afterTransition(ctx, post)
	}

	stats.Duration = s.now().Sub(stats.StartedAt)
	s.recordTick(ctx, stats)

	s.logger.Info("scheduler tick completed",
		"checked", stats.Checked,
		"published", stats.Published,
		"failed", stats.Failed,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, ctx.Err()
}

// PublishNow publishes one scheduled post immediately, ignoring its schedule
// time, and returns the updated record. A failed publish is reported through
// the record's status and error, not the returned error.
func (s *PublishService) PublishNow(ctx context.Context, id string) (*domain.Post, error) {
	schedule := s.store.Load(ctx)
	post, _ := schedule.Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if post.Status != domain.StatusScheduled {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrNotScheduled, id, post.Status)
	}

	s.logger.Info("publishing post on demand", "post_id", post.ID, "platform", post.Platform)
	if !s.publish(ctx, post) {
		return nil, fmt.Errorf("publish interrupted: %w", ctx.Err())
	}

	if err := s.store.Save(ctx, schedule); err != nil {
		return post.Clone(), err
	}
	s.afterTransition(ctx, post)

	return post.Clone(), nil
}

// publish calls the platform and applies the resulting transition to post.
// Any failure, including a panic inside the adapter, becomes a failed post,
// except a failure caused by ctx ending: the post then stays scheduled and
// publish reports false.
func (s *PublishService) publish(ctx context.Context, post *domain.Post) bool {
	var imagePath string
	if post.ImagePath != nil {
		imagePath = *post.ImagePath
	}

	result, err := s.callPublish(ctx, post.Platform, post.Content, imagePath)
	now := s.now()

	switch {
	case err != nil && ctx.Err() != nil:
		s.logger.Warn("publish interrupted, post left scheduled", "post_id", post.ID, "platform", post.Platform, "error", err)
		return false
	case err != nil:
		s.logger.Error("failed to publish post", "post_id", post.ID, "platform", post.Platform, "error", err)
		post.MarkFailed(err.Error(), now)
	case result == nil || result.PostID == "":
		s.logger.Error("failed to publish post", "post_id", post.ID, "platform", post.Platform, "error", errEmptyPostID)
		post.MarkFailed(errEmptyPostID, now)
	default:
		s.logger.Info("published post", "post_id", post.ID, "platform", post.Platform, "platform_post_id", result.PostID)
		post.MarkPublished(result.PostID, now)
	}
	return true
}

func (s *PublishService) callPublish(ctx context.Context, platform domain.Platform, content, imagePath string) (result *domain.PublishResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("error posting to %s: %v", platform, r)
		}
	}()
	return s.platforms.Publish(ctx, platform, content, imagePath)
}

func (s *PublishService) afterTransition(ctx context.Context, post *domain.Post) {
	s.metrics.PostTransition(post.Platform, post.Status)

	if s.journal != nil {
		attempt := &domain.PublishAttempt{
			PostID:         post.ID,
			Platform:       post.Platform,
			Status:         post.Status,
			PlatformPostID: post.PlatformPostID,
			Error:          post.Error,
			AttemptedAt:    s.now(),
		}
		if err := s.journal.RecordAttempt(ctx, attempt); err != nil {
			s.logger.Warn("failed to journal publish attempt", "post_id", post.ID, "error", err)
		}
	}

	if s.events != nil {
		action := domain.EventPublished
		if post.Status == domain.StatusFailed {
			action = domain.EventFailed
		}
		event := &domain.Event{Action: action, Post: post.Clone(), Timestamp: s.now().UTC()}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish post event", "post_id", post.ID, "error", err)
		}
	}
}

func (s *PublishService) recordTick(ctx context.Context, stats *domain.TickStats) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordTick(ctx, stats); err != nil {
		s.logger.Warn("failed to journal tick", "error", err)
	}
}

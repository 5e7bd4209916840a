package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"social_scheduler/internal/domain"
)

var ErrImageNotFound = errors.New("image not found")

type NewPost struct {
	Content      string  `json:"content"`
	Platform     string  `json:"platform"`
	ScheduleTime string  `json:"schedule_time"`
	ImagePath    *string `json:"image_path"`
}

// UpdatePost carries the editable fields of a scheduled post. Nil fields are
// left untouched; an empty ImagePath removes the image.
type UpdatePost struct {
	Content      *string `json:"content"`
	ScheduleTime *string `json:"schedule_time"`
	ImagePath    *string `json:"image_path"`
}

// ScheduleService is the operator surface over the schedule: creating,
// listing, editing and cancelling posts, and reading comment snapshots.
type ScheduleService struct {
	store     ScheduleStore
	snapshots SnapshotStore
	platforms Platforms
	logger    *slog.Logger
	now       func() time.Time
	statFile  func(string) (os.FileInfo, error)
}

// NewScheduleService builds the service. platforms may be nil, in which case
// any known platform is accepted.
func NewScheduleService(store ScheduleStore, snapshots SnapshotStore, platforms Platforms, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{
		store:     store,
		snapshots: snapshots,
		platforms: platforms,
		logger:    logger,
		now:       time.Now,
		statFile:  os.Stat,
	}
}

func (s *ScheduleService) Schedule(ctx context.Context, in NewPost) (*domain.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	platform, err := domain.ParsePlatform(in.Platform)
	if err != nil {
		return nil, err
	}
	if s.platforms != nil && !s.platforms.Supports(platform) {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrInvalidPlatform, platform)
	}

	scheduleTime, err := normalizeScheduleTime(in.ScheduleTime)
	if err != nil {
		return nil, err
	}

	imagePath, err := s.checkImage(in.ImagePath)
	if err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:           uuid.NewString(),
		Content:      content,
		Platform:     platform,
		ScheduleTime: scheduleTime,
		ImagePath:    imagePath,
		Status:       domain.StatusScheduled,
		CreatedAt:    domain.NewTimestamp(s.now()),
	}

	if err := s.store.Append(ctx, post); err != nil {
		return nil, fmt.Errorf("append post: %w", err)
	}

	s.logger.Info("post scheduled",
		"post_id", post.ID,
		"platform", post.Platform,
		"schedule_time", post.ScheduleTime,
	)

	return post, nil
}

// List returns the posts in document order, optionally filtered by status.
func (s *ScheduleService) List(ctx context.Context, status domain.Status) []*domain.Post {
	posts := s.store.Load(ctx).Posts
	if status == "" {
		return posts
	}

	filtered := make([]*domain.Post, 0, len(posts))
	for _, post := range posts {
		if post.Status == status {
			filtered = append(filtered, post)
		}
	}
	return filtered
}

func (s *ScheduleService) Get(ctx context.Context, id string) (*domain.Post, error) {
	return s.store.Get(ctx, id)
}

func (s *ScheduleService) Cancel(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("post cancelled", "post_id", id, "status", post.Status)
	return post, nil
}

// Reschedule edits a post that has not been published yet.
func (s *ScheduleService) Reschedule(ctx context.Context, id string, in UpdatePost) (*domain.Post, error) {
	var (
		content      string
		scheduleTime string
		imagePath    *string
		err          error
	)

	if in.Content != nil {
		content = strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, domain.ErrEmptyContent
		}
	}
	if in.ScheduleTime != nil {
		if scheduleTime, err = normalizeScheduleTime(*in.ScheduleTime); err != nil {
			return nil, err
		}
	}
	if in.ImagePath != nil {
		if imagePath, err = s.checkImage(in.ImagePath); err != nil {
			return nil, err
		}
	}

	post, err := s.store.Update(ctx, id, func(post *domain.Post) error {
		if post.Status != domain.StatusScheduled {
			return fmt.Errorf("%w: %s is %s", domain.ErrNotScheduled, id, post.Status)
		}
		if in.Content != nil {
			post.Content = content
		}
		if in.ScheduleTime != nil {
			post.ScheduleTime = scheduleTime
		}
		if in.ImagePath != nil {
			post.ImagePath = imagePath
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("post updated", "post_id", id, "schedule_time", post.ScheduleTime)
	return post, nil
}

// Comments returns the last comment snapshot of a published post.
func (s *ScheduleService) Comments(ctx context.Context, id string) ([]domain.Comment, error) {
	key, err := s.snapshotKey(ctx, id)
	if err != nil || key == "" {
		return []domain.Comment{}, err
	}
	comments, err := s.snapshots.LoadComments(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	return comments, nil
}

// Responses returns the last generated responses of a published post.
func (s *ScheduleService) Responses(ctx context.Context, id string) ([]domain.Response, error) {
	key, err := s.snapshotKey(ctx, id)
	if err != nil || key == "" {
		return []domain.Response{}, err
	}
	responses, err := s.snapshots.LoadResponses(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	return responses, nil
}

func (s *ScheduleService) snapshotKey(ctx context.Context, id string) (string, error) {
	post, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if post.PlatformPostID == nil {
		return "", nil
	}
	return *post.PlatformPostID, nil
}

func (s *ScheduleService) checkImage(path *string) (*string, error) {
	if path == nil {
		return nil, nil
	}
	p := strings.TrimSpace(*path)
	if p == "" {
		return nil, nil
	}
	info, err := s.statFile(p)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, p)
	}
	return &p, nil
}

// normalizeScheduleTime validates s and rewrites it as RFC 3339 UTC.
func normalizeScheduleTime(s string) (string, error) {
	at, err := domain.ParseTime(s)
	if err != nil {
		return "", err
	}
	return at.UTC().Format(time.RFC3339), nil
}

package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"social_scheduler/internal/domain"
)

// ScheduleStore is the shared schedule document. Implementations do not lock;
// each call is its own load, mutate, save cycle.
type ScheduleStore interface {
	Load(ctx context.Context) *domain.Schedule
	Save(ctx context.Context, schedule *domain.Schedule) error
	Append(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id string) (*domain.Post, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, platformPostID, errMsg string) (*domain.Post, error)
	Update(ctx context.Context, id string, fn func(*domain.Post) error) (*domain.Post, error)
	Cancel(ctx context.Context, id string) (*domain.Post, error)
}

type SnapshotStore interface {
	LoadComments(ctx context.Context, postID string) ([]domain.Comment, error)
	SaveComments(ctx context.Context, postID string, comments []domain.Comment) error
	LoadResponses(ctx context.Context, postID string) ([]domain.Response, error)
	SaveResponses(ctx context.Context, postID string, responses []domain.Response) error
}

type Platforms interface {
	Supports(platform domain.Platform) bool
	Publish(ctx context.Context, platform domain.Platform, content, imagePath string) (*domain.PublishResult, error)
	GetComments(ctx context.Context, platform domain.Platform, postID string) ([]domain.Comment, error)
}

type ResponseGenerator interface {
	Generate(ctx context.Context, platform domain.Platform, postID string, comments []domain.Comment) ([]domain.Response, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
	Close() error
}

type Journal interface {
	RecordAttempt(ctx context.Context, attempt *domain.PublishAttempt) error
	RecordTick(ctx context.Context, stats *domain.TickStats) error
}

type Notifier interface {
	NotifyResponses(ctx context.Context, post *domain.Post, comments []domain.Comment, responses []domain.Response) error
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/service/mocks"
	"social_scheduler/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

func scheduledPost(id string, platform domain.Platform, at string) *domain.Post {
	return &domain.Post{
		ID:           id,
		Content:      "content of " + id,
		Platform:     platform,
		ScheduleTime: at,
		Status:       domain.StatusScheduled,
	}
}

type PublishServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	platforms *mocks.MockPlatforms
	events    *mocks.MockEventPublisher
	journal   *mocks.MockJournal

	store   *memory.ScheduleStore
	service *PublishService
	now     time.Time
	logger  *slog.Logger
}

func (s *PublishServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.platforms = mocks.NewMockPlatforms(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.journal = mocks.NewMockJournal(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.now = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s.store = memory.NewScheduleStore()

	s.journal.EXPECT().RecordTick(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.service = s.newService(s.store)
}

func (s *PublishServiceTestSuite) newService(store ScheduleStore) *PublishService {
	svc := NewPublishService(store, s.platforms, s.events, s.journal, nil, s.logger)
	svc.now = func() time.Time { return s.now }
	return svc
}

func (s *PublishServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPublishServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PublishServiceTestSuite))
}

func (s *PublishServiceTestSuite) expectSideChannels(times int) {
	s.journal.EXPECT().RecordAttempt(gomock.Any(), gomock.Any()).Return(nil).Times(times)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(times)
}

func (s *PublishServiceTestSuite) TestTick_DuePostPublished() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformTwitter, "content of p1", "").
		Return(&domain.PublishResult{PostID: "t123"}, nil)
	s.journal.EXPECT().RecordAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *domain.PublishAttempt) error {
			s.Equal("p1", a.PostID)
			s.Equal(domain.StatusPublished, a.Status)
			s.Equal("t123", *a.PlatformPostID)
			return nil
		},
	)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.Event) error {
			s.Equal(domain.EventPublished, e.Action)
			s.Equal("p1", e.Post.ID)
			return nil
		},
	)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Checked)
	s.Equal(1, stats.Published)
	s.Equal(0, stats.Failed)

	post, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(domain.StatusPublished, post.Status)
	s.Require().NotNil(post.PlatformPostID)
	s.Equal("t123", *post.PlatformPostID)
	s.Require().NotNil(post.PublishedAt)
	s.Equal(s.now, post.PublishedAt.Time)
	s.Nil(post.Error)
	s.Nil(post.FailedAt)
}

func (s *PublishServiceTestSuite) TestTick_AdapterFailure() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformTwitter, gomock.Any(), gomock.Any()).
		Return(nil, errors.New("rate limited"))
	s.journal.EXPECT().RecordAttempt(gomock.Any(), gomock.Any()).Return(nil)
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e *domain.Event) error {
			s.Equal(domain.EventFailed, e.Action)
			return nil
		},
	)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(0, stats.Published)
	s.Equal(1, stats.Failed)

	post, err := s.store.Get(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(domain.StatusFailed, post.Status)
	s.Require().NotNil(post.Error)
	s.Equal("rate limited", *post.Error)
	s.Nil(post.PlatformPostID)
	s.Require().NotNil(post.FailedAt)
	s.Equal(s.now, post.FailedAt.Time)
}

func (s *PublishServiceTestSuite) TestTick_EmptyPostIDIsFailure() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformLinkedIn, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformLinkedIn, gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{}, nil)
	s.expectSideChannels(1)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Failed)

	post, _ := s.store.Get(ctx, "p1")
	s.Equal(domain.StatusFailed, post.Status)
	s.Equal(errEmptyPostID, *post.Error)
	s.Nil(post.PlatformPostID)
}

func (s *PublishServiceTestSuite) TestTick_AdapterPanicBecomesFailure() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.Platform, string, string) (*domain.PublishResult, error) {
			panic("boom")
		})
	s.expectSideChannels(1)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Failed)

	post, _ := s.store.Get(ctx, "p1")
	s.Equal(domain.StatusFailed, post.Status)
	s.Contains(*post.Error, "boom")
}

func (s *PublishServiceTestSuite) TestTick_SkipsNotDueAndTerminal() {
	ctx := context.Background()

	published := scheduledPost("done", domain.PlatformTwitter, "2024-01-01T00:00:00Z")
	published.MarkPublished("t1", s.now)
	failed := scheduledPost("broken", domain.PlatformTwitter, "2024-01-01T00:00:00Z")
	failed.MarkFailed("nope", s.now)

	s.store = memory.NewScheduleStore(
		published,
		failed,
		scheduledPost("future", domain.PlatformTwitter, "2024-01-03T00:00:00Z"),
		scheduledPost("garbage", domain.PlatformTwitter, "next tuesday"),
	)
	s.service = s.newService(s.store)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(2, stats.Checked)
	s.Equal(0, stats.Published)
	s.Equal(1, stats.Errors)

	garbage, _ := s.store.Get(ctx, "garbage")
	s.Equal(domain.StatusScheduled, garbage.Status)
	future, _ := s.store.Get(ctx, "future")
	s.Equal(domain.StatusScheduled, future.Status)
}

func (s *PublishServiceTestSuite) TestTick_OffsetScheduleTimeComparedInUTC() {
	ctx := context.Background()
	// 2024-01-02T01:00:00+02:00 is 2024-01-01T23:00:00Z, already due.
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-02T01:00:00+02:00"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{PostID: "t9"}, nil)
	s.expectSideChannels(1)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
}

func (s *PublishServiceTestSuite) TestTick_Idempotent() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{PostID: "t123"}, nil).
		Times(1)
	s.expectSideChannels(1)

	_, err := s.service.Tick(ctx)
	s.Require().NoError(err)
	first := s.store.Posts()

	stats, err := s.service.Tick(ctx)
	s.Require().NoError(err)
	s.Equal(0, stats.Checked)
	s.Equal(first, s.store.Posts())
}

func (s *PublishServiceTestSuite) TestTick_ImagePathPassedThrough() {
	ctx := context.Background()
	post := scheduledPost("p1", domain.PlatformLinkedIn, "2024-01-01T00:00:00Z")
	post.ImagePath = ptr("/tmp/cat.png")
	s.store = memory.NewScheduleStore(post)
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformLinkedIn, "content of p1", "/tmp/cat.png").
		Return(&domain.PublishResult{PostID: "urn:li:share:1"}, nil)
	s.expectSideChannels(1)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
}

func (s *PublishServiceTestSuite) TestTick_SavesAfterEachPost() {
	ctx := context.Background()
	store := mocks.NewMockScheduleStore(s.ctrl)
	s.service = s.newService(store)

	schedule := &domain.Schedule{Posts: []*domain.Post{
		scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"),
		scheduledPost("p2", domain.PlatformLinkedIn, "2024-01-01T00:00:00Z"),
	}}

	store.EXPECT().Load(ctx).Return(schedule)
	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformTwitter, gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{PostID: "t1"}, nil)
	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformLinkedIn, gomock.Any(), gomock.Any()).
		Return(nil, errors.New("unauthorized"))
	store.EXPECT().Save(ctx, schedule).Return(errors.New("disk full"))
	store.EXPECT().Save(ctx, schedule).Return(nil)
	s.expectSideChannels(2)

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
	s.Equal(1, stats.Failed)
	s.Equal(1, stats.Errors)
}

func (s *PublishServiceTestSuite) TestTick_SideChannelErrorsIgnored() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{PostID: "t1"}, nil)
	s.journal.EXPECT().RecordAttempt(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	s.events.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	stats, err := s.service.Tick(ctx)

	s.NoError(err)
	s.Equal(1, stats.Published)
	s.Equal(0, stats.Errors)
}

func (s *PublishServiceTestSuite) TestTick_ContextCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	_, err := s.service.Tick(ctx)

	s.ErrorIs(err, context.Canceled)
	post, _ := s.store.Get(context.Background(), "p1")
	s.Equal(domain.StatusScheduled, post.Status)
}

func (s *PublishServiceTestSuite) TestTick_CancelledDuringPublishLeavesPostScheduled() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := mocks.NewMockScheduleStore(s.ctrl)
	s.service = s.newService(store)

	store.EXPECT().Load(gomock.Any()).Return(&domain.Schedule{Posts: []*domain.Post{
		scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z"),
		scheduledPost("p2", domain.PlatformTwitter, "2024-01-01T00:00:00Z"),
	}})
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformTwitter, "content of p1", "").
		DoAndReturn(func(ctx context.Context, _ domain.Platform, _, _ string) (*domain.PublishResult, error) {
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			<-ctx.Done()
			return nil, ctx.Err()
		})

	stats, err := s.service.Tick(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Equal(0, stats.Failed)
	s.Equal(0, stats.Published)
}

func (s *PublishServiceTestSuite) TestPublishNow_CancelledLeavesPostScheduled() {
	ctx, cancel := context.WithCancel(context.Background())
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformLinkedIn, "2030-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformLinkedIn, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Platform, _, _ string) (*domain.PublishResult, error) {
			cancel()
			return nil, ctx.Err()
		})

	post, err := s.service.PublishNow(ctx, "p1")

	s.ErrorIs(err, context.Canceled)
	s.Nil(post)
	stored, _ := s.store.Get(context.Background(), "p1")
	s.Equal(domain.StatusScheduled, stored.Status)
	s.Nil(stored.Error)
}

func (s *PublishServiceTestSuite) TestPublishNow() {
	ctx := context.Background()
	s.store = memory.NewScheduleStore(scheduledPost("p1", domain.PlatformTwitter, "2030-01-01T00:00:00Z"))
	s.service = s.newService(s.store)

	s.platforms.EXPECT().
		Publish(gomock.Any(), domain.PlatformTwitter, gomock.Any(), gomock.Any()).
		Return(&domain.PublishResult{PostID: "t5"}, nil)
	s.expectSideChannels(1)

	post, err := s.service.PublishNow(ctx, "p1")

	s.Require().NoError(err)
	s.Equal(domain.StatusPublished, post.Status)
	s.Equal("t5", *post.PlatformPostID)

	stored, _ := s.store.Get(ctx, "p1")
	s.Equal(domain.StatusPublished, stored.Status)
}

func (s *PublishServiceTestSuite) TestPublishNow_Errors() {
	ctx := context.Background()
	published := scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z")
	published.MarkPublished("t1", s.now)
	s.store = memory.NewScheduleStore(published)
	s.service = s.newService(s.store)

	_, err := s.service.PublishNow(ctx, "missing")
	s.ErrorIs(err, domain.ErrPostNotFound)

	_, err = s.service.PublishNow(ctx, "p1")
	s.ErrorIs(err, domain.ErrNotScheduled)
}

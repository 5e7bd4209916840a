package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/service/mocks"
	"social_scheduler/internal/storage/memory"
)

type ScheduleServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	platforms *mocks.MockPlatforms
	store     *memory.ScheduleStore
	snapshots *memory.SnapshotStore
	service   *ScheduleService
	now       time.Time
}

func (s *ScheduleServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.platforms = mocks.NewMockPlatforms(s.ctrl)
	s.platforms.EXPECT().Supports(domain.PlatformTwitter).Return(true).AnyTimes()
	s.platforms.EXPECT().Supports(domain.PlatformLinkedIn).Return(false).AnyTimes()

	s.store = memory.NewScheduleStore()
	s.snapshots = memory.NewSnapshotStore()
	s.now = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.service = NewScheduleService(s.store, s.snapshots, s.platforms, logger)
	s.service.now = func() time.Time { return s.now }
}

func (s *ScheduleServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestScheduleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ScheduleServiceTestSuite))
}

func (s *ScheduleServiceTestSuite) TestSchedule() {
	ctx := context.Background()

	post, err := s.service.Schedule(ctx, NewPost{
		Content:      "  hello world  ",
		Platform:     "X",
		ScheduleTime: "2024-02-01 10:00:00",
	})

	s.Require().NoError(err)
	s.NotEmpty(post.ID)
	s.Equal("hello world", post.Content)
	s.Equal(domain.PlatformTwitter, post.Platform)
	s.Equal("2024-02-01T10:00:00Z", post.ScheduleTime)
	s.Equal(domain.StatusScheduled, post.Status)
	s.Require().NotNil(post.CreatedAt)
	s.Equal(s.now, post.CreatedAt.Time)
	s.Nil(post.PlatformPostID)
	s.Nil(post.Error)

	stored, err := s.store.Get(ctx, post.ID)
	s.Require().NoError(err)
	s.Equal(post, stored)
}

func (s *ScheduleServiceTestSuite) TestSchedule_Validation() {
	ctx := context.Background()

	_, err := s.service.Schedule(ctx, NewPost{Content: " ", Platform: "twitter", ScheduleTime: "2024-02-01T10:00:00Z"})
	s.ErrorIs(err, domain.ErrEmptyContent)

	_, err = s.service.Schedule(ctx, NewPost{Content: "hi", Platform: "myspace", ScheduleTime: "2024-02-01T10:00:00Z"})
	s.ErrorIs(err, domain.ErrInvalidPlatform)

	_, err = s.service.Schedule(ctx, NewPost{Content: "hi", Platform: "linkedin", ScheduleTime: "2024-02-01T10:00:00Z"})
	s.ErrorIs(err, domain.ErrInvalidPlatform)

	_, err = s.service.Schedule(ctx, NewPost{Content: "hi", Platform: "twitter", ScheduleTime: "tomorrow"})
	s.ErrorIs(err, domain.ErrInvalidScheduleTime)

	_, err = s.service.Schedule(ctx, NewPost{
		Content:      "hi",
		Platform:     "twitter",
		ScheduleTime: "2024-02-01T10:00:00Z",
		ImagePath:    ptr(filepath.Join(s.T().TempDir(), "missing.png")),
	})
	s.ErrorIs(err, ErrImageNotFound)

	s.Empty(s.store.Posts())
}

func (s *ScheduleServiceTestSuite) TestSchedule_WithImage() {
	ctx := context.Background()
	image := filepath.Join(s.T().TempDir(), "cat.png")
	s.Require().NoError(os.WriteFile(image, []byte("png"), 0o644))

	post, err := s.service.Schedule(ctx, NewPost{
		Content:      "look",
		Platform:     "twitter",
		ScheduleTime: "2024-02-01T10:00:00+01:00",
		ImagePath:    &image,
	})

	s.Require().NoError(err)
	s.Equal("2024-02-01T09:00:00Z", post.ScheduleTime)
	s.Require().NotNil(post.ImagePath)
	s.Equal(image, *post.ImagePath)
}

func (s *ScheduleServiceTestSuite) TestListFilters() {
	ctx := context.Background()
	published := publishedPost("p2", domain.PlatformTwitter, "t2")
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))
	s.Require().NoError(s.store.Append(ctx, published))

	s.Len(s.service.List(ctx, ""), 2)

	scheduled := s.service.List(ctx, domain.StatusScheduled)
	s.Require().Len(scheduled, 1)
	s.Equal("p1", scheduled[0].ID)

	s.Empty(s.service.List(ctx, domain.StatusFailed))
}

func (s *ScheduleServiceTestSuite) TestCancel() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p2", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))

	post, err := s.service.Cancel(ctx, "p1")
	s.Require().NoError(err)
	s.Equal("p1", post.ID)

	remaining := s.store.Posts()
	s.Require().Len(remaining, 1)
	s.Equal("p2", remaining[0].ID)

	_, err = s.service.Cancel(ctx, "p1")
	s.ErrorIs(err, domain.ErrPostNotFound)
}

func (s *ScheduleServiceTestSuite) TestReschedule() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p1", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))

	post, err := s.service.Reschedule(ctx, "p1", UpdatePost{
		Content:      ptr("new content"),
		ScheduleTime: ptr("2024-03-01T08:00:00Z"),
	})

	s.Require().NoError(err)
	s.Equal("new content", post.Content)
	s.Equal("2024-03-01T08:00:00Z", post.ScheduleTime)

	stored, _ := s.store.Get(ctx, "p1")
	s.Equal("new content", stored.Content)
}

func (s *ScheduleServiceTestSuite) TestReschedule_Errors() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, publishedPost("p1", domain.PlatformTwitter, "t1")))
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p2", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))

	_, err := s.service.Reschedule(ctx, "p1", UpdatePost{Content: ptr("late edit")})
	s.ErrorIs(err, domain.ErrNotScheduled)

	_, err = s.service.Reschedule(ctx, "missing", UpdatePost{Content: ptr("x")})
	s.ErrorIs(err, domain.ErrPostNotFound)

	_, err = s.service.Reschedule(ctx, "p2", UpdatePost{ScheduleTime: ptr("soon")})
	s.ErrorIs(err, domain.ErrInvalidScheduleTime)

	stored, _ := s.store.Get(ctx, "p2")
	s.Equal("2024-01-01T00:00:00Z", stored.ScheduleTime)
}

func (s *ScheduleServiceTestSuite) TestCommentsAndResponses() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, publishedPost("p1", domain.PlatformTwitter, "t1")))
	s.Require().NoError(s.store.Append(ctx, scheduledPost("p2", domain.PlatformTwitter, "2024-01-01T00:00:00Z")))

	cs := comments(2)
	rs := []domain.Response{{CommentID: "a", Response: "thanks", Timestamp: s.now}}
	s.Require().NoError(s.snapshots.SaveComments(ctx, "t1", cs))
	s.Require().NoError(s.snapshots.SaveResponses(ctx, "t1", rs))

	gotComments, err := s.service.Comments(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(cs, gotComments)

	gotResponses, err := s.service.Responses(ctx, "p1")
	s.Require().NoError(err)
	s.Equal(rs, gotResponses)

	empty, err := s.service.Comments(ctx, "p2")
	s.NoError(err)
	s.Empty(empty)

	_, err = s.service.Responses(ctx, "missing")
	s.ErrorIs(err, domain.ErrPostNotFound)
}

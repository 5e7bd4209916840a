// Package memory holds in-process implementations of the schedule and
// snapshot stores. They keep the same load/mutate/save semantics as the file
// backed stores: callers get copies, and nothing changes until Save.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"social_scheduler/internal/domain"
)

type ScheduleStore struct {
	mu    sync.Mutex
	posts []*domain.Post

	// SaveErr, when set, is returned by every Save without storing anything.
	SaveErr error
}

func NewScheduleStore(posts ...*domain.Post) *ScheduleStore {
	return &ScheduleStore{posts: clonePosts(posts)}
}

func clonePosts(posts []*domain.Post) []*domain.Post {
	out := make([]*domain.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Clone())
	}
	return out
}

func (s *ScheduleStore) Load(ctx context.Context) *domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &domain.Schedule{Posts: clonePosts(s.posts)}
}

func (s *ScheduleStore) Save(ctx context.Context, schedule *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.posts = clonePosts(schedule.Posts)
	return nil
}

func (s *ScheduleStore) Append(ctx context.Context, post *domain.Post) error {
	schedule := s.Load(ctx)
	schedule.Posts = append(schedule.Posts, post)
	return s.Save(ctx, schedule)
}

func (s *ScheduleStore) Get(ctx context.Context, id string) (*domain.Post, error) {
	post, _ := s.Load(ctx).Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	return post, nil
}

func (s *ScheduleStore) UpdateStatus(ctx context.Context, id string, status domain.Status, platformPostID, errMsg string) (*domain.Post, error) {
	return s.Update(ctx, id, func(post *domain.Post) error {
		if status == domain.StatusPublished && platformPostID == "" {
			return errors.New("published status requires a platform post id")
		}
		post.ApplyStatus(status, platformPostID, errMsg, time.Now())
		return nil
	})
}

func (s *ScheduleStore) Update(ctx context.Context, id string, fn func(*domain.Post) error) (*domain.Post, error) {
	schedule := s.Load(ctx)
	post, _ := schedule.Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err := fn(post); err != nil {
		return nil, err
	}
	return post, s.Save(ctx, schedule)
}

func (s *ScheduleStore) Cancel(ctx context.Context, id string) (*domain.Post, error) {
	schedule := s.Load(ctx)
	post, idx := schedule.Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	schedule.Posts = append(schedule.Posts[:idx], schedule.Posts[idx+1:]...)
	return post, s.Save(ctx, schedule)
}

// Posts returns a copy of the stored records.
func (s *ScheduleStore) Posts() []*domain.Post {
	return s.Load(context.Background()).Posts
}

type SnapshotStore struct {
	mu        sync.Mutex
	comments  map[string][]domain.Comment
	responses map[string][]domain.Response

	// SaveCommentsErr, when set, makes SaveComments fail.
	SaveCommentsErr error
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		comments:  make(map[string][]domain.Comment),
		responses: make(map[string][]domain.Response),
	}
}

func (s *SnapshotStore) LoadComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Comment{}, s.comments[postID]...), nil
}

func (s *SnapshotStore) SaveComments(ctx context.Context, postID string, comments []domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveCommentsErr != nil {
		return s.SaveCommentsErr
	}
	s.comments[postID] = append([]domain.Comment{}, comments...)
	return nil
}

func (s *SnapshotStore) LoadResponses(ctx context.Context, postID string) ([]domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Response{}, s.responses[postID]...), nil
}

func (s *SnapshotStore) SaveResponses(ctx context.Context, postID string, responses []domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[postID] = append([]domain.Response{}, responses...)
	return nil
}

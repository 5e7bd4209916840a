package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"social_scheduler/internal/domain"
)

// ScheduleStore keeps the whole schedule as one JSON document on disk.
//
// There is no locking. Every operation is an independent load, mutate, save
// cycle, so two processes writing at the same time can lose one of the
// updates (last writer wins). Writes go through a temp file and a rename, so
// readers never observe a half written document.
type ScheduleStore struct {
	path   string
	logger *slog.Logger
}

func NewScheduleStore(path string, logger *slog.Logger) *ScheduleStore {
	return &ScheduleStore{
		path:   path,
		logger: logger.With("store", "schedule", "path", path),
	}
}

func (s *ScheduleStore) Path() string {
	return s.path
}

// Load reads the document. A missing, unreadable or malformed file yields an
// empty schedule; the failure is logged and never returned.
func (s *ScheduleStore) Load(ctx context.Context) *domain.Schedule {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("failed to read schedule", "error", err)
		}
		return domain.NewSchedule()
	}

	var schedule domain.Schedule
	if err := json.Unmarshal(data, &schedule); err != nil {
		s.logger.Error("failed to parse schedule", "error", err)
		return domain.NewSchedule()
	}
	if schedule.Posts == nil {
		schedule.Posts = []*domain.Post{}
	}
	return &schedule
}

// Save overwrites the document. The error is logged and returned; the
// caller's in-memory schedule is left as is either way.
func (s *ScheduleStore) Save(ctx context.Context, schedule *domain.Schedule) error {
	if err := writeJSON(s.path, schedule); err != nil {
		s.logger.Error("failed to save schedule", "error", err)
		return fmt.Errorf("save schedule: %w", err)
	}
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

// Update loads the document, applies fn to the record with the given id and
// saves. Nothing is written when the id is unknown or fn fails.
func (s *ScheduleStore) Update(ctx context.Context, id string, fn func(*domain.Post) error) (*domain.Post, error) {
	schedule := s.Load(ctx)
	post, _ := schedule.Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	if err := fn(post); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, schedule); err != nil {
		return post, err
	}
	return post, nil
}

func (s *ScheduleStore) Cancel(ctx context.Context, id string) (*domain.Post, error) {
	schedule := s.Load(ctx)
	post, idx := schedule.Find(id)
	if post == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostNotFound, id)
	}
	schedule.Posts = append(schedule.Posts[:idx], schedule.Posts[idx+1:]...)
	if err := s.Save(ctx, schedule); err != nil {
		return post, err
	}
	return post, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

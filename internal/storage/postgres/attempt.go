package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social_scheduler/internal/domain"
)

type AttemptStore struct {
	db *sqlx.DB
}

func NewAttemptStore(db *sqlx.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Insert(ctx context.Context, attempt *domain.PublishAttempt) error {
	query := `
		INSERT INTO publish_attempts (
			post_id, platform, status, platform_post_id, error, attempted_at
		) VALUES (
			:post_id, :platform, :status, :platform_post_id, :error, :attempted_at
		)`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, attempt)
	if err != nil {
		return fmt.Errorf("insert publish attempt: %w", err)
	}
	return nil
}

// ListByPosts returns the attempts for the given posts, newest first.
func (s *AttemptStore) ListByPosts(ctx context.Context, postIDs []string) ([]domain.PublishAttempt, error) {
	attempts := []domain.PublishAttempt{}
	if len(postIDs) == 0 {
		return attempts, nil
	}

	query := `
		SELECT post_id, platform, status, platform_post_id, error, attempted_at
		FROM publish_attempts
		WHERE post_id = ANY($1)
		ORDER BY attempted_at DESC, id DESC`

	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &attempts, query, pq.Array(postIDs)); err != nil {
		return nil, fmt.Errorf("list publish attempts: %w", err)
	}
	return attempts, nil
}

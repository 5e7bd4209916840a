package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"social_scheduler/internal/domain"
)

type LoopStateStore struct {
	db *sqlx.DB
}

func NewLoopStateStore(db *sqlx.DB) *LoopStateStore {
	return &LoopStateStore{db: db}
}

func (s *LoopStateStore) Get(ctx context.Context, loop string) (*domain.LoopState, error) {
	var state domain.LoopState
	query := `
		SELECT loop, last_tick_at, total_processed, total_errors
		FROM loop_state
		WHERE loop = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, loop)
	if errors.Is(err, sql.ErrNoRows) {
		// A loop that never ticked has an empty state.
		return &domain.LoopState{Loop: loop}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get loop state: %w", err)
	}
	return &state, nil
}

// List returns the state of every loop that has ticked at least once.
func (s *LoopStateStore) List(ctx context.Context) ([]domain.LoopState, error) {
	states := []domain.LoopState{}
	query := `SELECT loop, last_tick_at, total_processed, total_errors FROM loop_state ORDER BY loop`
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &states, query); err != nil {
		return nil, fmt.Errorf("list loop state: %w", err)
	}
	return states, nil
}

// Advance records one tick on the loop's running totals.
func (s *LoopStateStore) Advance(ctx context.Context, stats *domain.TickStats) error {
	query := `
		INSERT INTO loop_state (loop, last_tick_at, total_processed, total_errors)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (loop) DO UPDATE SET
			last_tick_at = EXCLUDED.last_tick_at,
			total_processed = loop_state.total_processed + EXCLUDED.total_processed,
			total_errors = loop_state.total_errors + EXCLUDED.total_errors`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		stats.Loop,
		stats.StartedAt,
		stats.Processed(),
		stats.Errors,
	)
	if err != nil {
		return fmt.Errorf("advance loop state: %w", err)
	}
	return nil
}

func (s *LoopStateStore) InsertTick(ctx context.Context, stats *domain.TickStats) error {
	query := `
		INSERT INTO loop_ticks (loop, started_at, duration_ms, checked, processed, errors)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		stats.Loop,
		stats.StartedAt,
		stats.Duration.Milliseconds(),
		stats.Checked,
		stats.Processed(),
		stats.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert loop tick: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"social_scheduler/internal/domain"
)

// Journal is the Postgres activity log of publish attempts and loop ticks.
// The schedule document stays the source of truth; the journal is history.
type Journal struct {
	db       *sqlx.DB
	tx       *TransactionManager
	attempts *AttemptStore
	states   *LoopStateStore
}

func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{
		db:       db,
		tx:       NewTransactionManager(db),
		attempts: NewAttemptStore(db),
		states:   NewLoopStateStore(db),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func (j *Journal) RecordAttempt(ctx context.Context, attempt *domain.PublishAttempt) error {
	return j.attempts.Insert(ctx, attempt)
}

// RecordTick writes the tick row and advances the loop totals atomically.
func (j *Journal) RecordTick(ctx context.Context, stats *domain.TickStats) error {
	return j.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := j.states.InsertTick(ctx, stats); err != nil {
			return err
		}
		return j.states.Advance(ctx, stats)
	})
}

func (j *Journal) Attempts(ctx context.Context, postID string) ([]domain.PublishAttempt, error) {
	return j.attempts.ListByPosts(ctx, []string{postID})
}

func (j *Journal) LoopStates(ctx context.Context) ([]domain.LoopState, error) {
	return j.states.List(ctx)
}

func (j *Journal) Close() error {
	return j.db.Close()
}

package domain

import "time"

// TickStats holds statistics about one pass of a poll loop.
type TickStats struct {
	Loop      string
	StartedAt time.Time
	Checked   int
	Published int
	Failed    int
	Responded int
	Errors    int
	Duration  time.Duration
}

// Processed is the number of posts that changed state or produced responses.
func (s *TickStats) Processed() int {
	return s.Published + s.Failed + s.Responded
}

// PublishAttempt is one journaled call to a platform's publish endpoint.
type PublishAttempt struct {
	PostID         string    `db:"post_id" json:"post_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	Status         Status    `db:"status" json:"status"`
	PlatformPostID *string   `db:"platform_post_id" json:"platform_post_id"`
	Error          *string   `db:"error" json:"error"`
	AttemptedAt    time.Time `db:"attempted_at" json:"attempted_at"`
}

type LoopState struct {
	Loop           string    `db:"loop" json:"loop"`
	LastTickAt     time.Time `db:"last_tick_at" json:"last_tick_at"`
	TotalProcessed int64     `db:"total_processed" json:"total_processed"`
	TotalErrors    int64     `db:"total_errors" json:"total_errors"`
}

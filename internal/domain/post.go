package domain

import (
	"fmt"
	"strings"
	"time"
)

type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
)

// ParsePlatform normalizes a user supplied platform name. "x" is accepted as
// an alias for twitter.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linkedin":
		return PlatformLinkedIn, nil
	case "twitter", "x":
		return PlatformTwitter, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, s)
	}
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusScheduled, StatusPublished, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Post is one record of the schedule document.
type Post struct {
	ID             string     `json:"id"`
	Content        string     `json:"content"`
	Platform       Platform   `json:"platform"`
	ScheduleTime   string     `json:"schedule_time"`
	ImagePath      *string    `json:"image_path"`
	Status         Status     `json:"status"`
	PlatformPostID *string    `json:"platform_post_id"`
	CreatedAt      *Timestamp `json:"created_at"`
	PublishedAt    *Timestamp `json:"published_at"`
	FailedAt       *Timestamp `json:"failed_at"`
	Error          *string    `json:"error"`
}

// DueAt returns the schedule time in UTC.
func (p *Post) DueAt() (time.Time, error) {
	return ParseTime(p.ScheduleTime)
}

// IsDue reports whether a scheduled post should be published at now.
// Posts with an unparseable schedule time are never due.
func (p *Post) IsDue(now time.Time) (bool, error) {
	if p.Status != StatusScheduled {
		return false, nil
	}
	at, err := p.DueAt()
	if err != nil {
		return false, err
	}
	return !now.UTC().Before(at), nil
}

// MarkPublished moves the post to its published terminal state.
func (p *Post) MarkPublished(platformPostID string, now time.Time) {
	p.Status = StatusPublished
	p.PlatformPostID = &platformPostID
	p.PublishedAt = NewTimestamp(now)
	p.Error = nil
}

// MarkFailed moves the post to its failed terminal state.
func (p *Post) MarkFailed(reason string, now time.Time) {
	p.Status = StatusFailed
	p.PlatformPostID = nil
	p.FailedAt = NewTimestamp(now)
	p.Error = &reason
}

// ApplyStatus sets the status together with the fields that must change
// with it, keeping platform_post_id present only on published posts.
func (p *Post) ApplyStatus(status Status, platformPostID, errMsg string, now time.Time) {
	switch status {
	case StatusPublished:
		p.MarkPublished(platformPostID, now)
	case StatusFailed:
		p.MarkFailed(errMsg, now)
		if errMsg == "" {
			p.Error = nil
		}
	default:
		p.Status = status
		p.PlatformPostID = nil
		p.PublishedAt = nil
		p.FailedAt = nil
		p.Error = nil
	}
}

// Clone returns a deep copy so callers can hand out records without sharing
// pointer fields with the document they came from.
func (p *Post) Clone() *Post {
	c := *p
	c.ImagePath = clonePtr(p.ImagePath)
	c.PlatformPostID = clonePtr(p.PlatformPostID)
	c.Error = clonePtr(p.Error)
	c.CreatedAt = clonePtr(p.CreatedAt)
	c.PublishedAt = clonePtr(p.PublishedAt)
	c.FailedAt = clonePtr(p.FailedAt)
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Schedule is the whole persisted document.
type Schedule struct {
	Posts []*Post `json:"scheduled_posts"`
}

func NewSchedule() *Schedule {
	return &Schedule{Posts: []*Post{}}
}

// Find returns the post with the given id and its index, or -1.
func (s *Schedule) Find(id string) (*Post, int) {
	for i, p := range s.Posts {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// PublishResult is the normalized outcome of a successful publish call.
type PublishResult struct {
	PostID string
	URL    string
}

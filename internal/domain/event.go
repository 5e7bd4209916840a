package domain

import "time"

type EventAction string

const (
	EventPublished EventAction = "published"
	EventFailed    EventAction = "failed"
	EventResponded EventAction = "responded"
)

// Event is the message emitted when a post changes state or gets responses.
type Event struct {
	Action        EventAction `json:"action"`
	Post          *Post       `json:"post"`
	CommentCount  int         `json:"comment_count,omitempty"`
	ResponseCount int         `json:"response_count,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

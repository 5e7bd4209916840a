package domain

import "time"

type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

type Response struct {
	CommentID string    `json:"comment_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

package domain

import "errors"

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrNotScheduled        = errors.New("post is not scheduled")
	ErrInvalidPlatform     = errors.New("unsupported platform")
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	ErrEmptyContent        = errors.New("content is empty")
	ErrInvalidStatus       = errors.New("invalid status")
)

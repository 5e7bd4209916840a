package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"zulu", "2024-01-01T10:00:00Z", want},
		{"offset", "2024-01-01T12:00:00+02:00", want},
		{"naive is utc", "2024-01-01T10:00:00", want},
		{"naive with micros", "2024-01-01T10:00:00.000000", want},
		{"space separator", "2024-01-01 10:00:00", want},
		{"minutes only", "2024-01-01T10:00", want},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTime_Invalid(t *testing.T) {
	for _, input := range []string{"", "tomorrow", "2024-13-01T00:00:00Z", "01/02/2024"} {
		_, err := ParseTime(input)
		assert.ErrorIs(t, err, ErrInvalidScheduleTime, input)
	}
}

func TestPost_IsDue(t *testing.T) {
	post := &Post{Status: StatusScheduled, ScheduleTime: "2024-01-01T00:00:00Z"}

	due, err := post.IsDue(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = post.IsDue(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due, "exactly at schedule time is due")

	due, err = post.IsDue(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)

	post.Status = StatusPublished
	due, err = post.IsDue(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due, "terminal posts are never due")
}

func TestPost_IsDue_OffsetConvertedToUTC(t *testing.T) {
	// 09:00 in UTC-05:00 is 14:00 UTC.
	post := &Post{Status: StatusScheduled, ScheduleTime: "2024-01-01T09:00:00-05:00"}

	due, err := post.IsDue(time.Date(2024, 1, 1, 13, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)

	due, err = post.IsDue(time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)
}

func TestTimestamp_JSON(t *testing.T) {
	var post Post
	err := json.Unmarshal([]byte(`{"id":"p1","created_at":"2024-01-01T10:00:00.123456","published_at":null}`), &post)
	require.NoError(t, err)
	require.NotNil(t, post.CreatedAt)
	assert.Nil(t, post.PublishedAt)
	assert.Equal(t, 2024, post.CreatedAt.Year())
	assert.True(t, post.CreatedAt.Valid())

	data, err := json.Marshal(NewTimestamp(time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("x", 7200))))
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-01T10:00:00Z"`, string(data))
}

func TestTimestamp_UnparseableKeptVerbatim(t *testing.T) {
	var post Post
	err := json.Unmarshal([]byte(`{"id":"p1","created_at":"","published_at":"yesterday","failed_at":42}`), &post)
	require.NoError(t, err)

	require.NotNil(t, post.CreatedAt)
	assert.False(t, post.CreatedAt.Valid())
	assert.True(t, post.CreatedAt.IsZero())

	data, err := json.Marshal(&post)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":""`)
	assert.Contains(t, string(data), `"published_at":"yesterday"`)
	assert.Contains(t, string(data), `"failed_at":42`)
}

func TestPost_NullTimestampsWritten(t *testing.T) {
	data, err := json.Marshal(&Post{ID: "p1", Status: StatusScheduled})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"published_at":null`)
	assert.Contains(t, string(data), `"failed_at":null`)
	assert.Contains(t, string(data), `"platform_post_id":null`)
	assert.Contains(t, string(data), `"error":null`)
}

func TestPost_Transitions(t *testing.T) {
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	post := &Post{ID: "p1", Status: StatusScheduled}
	post.MarkPublished("t123", now)
	assert.Equal(t, StatusPublished, post.Status)
	require.NotNil(t, post.PlatformPostID)
	assert.Equal(t, "t123", *post.PlatformPostID)
	require.NotNil(t, post.PublishedAt)
	assert.Nil(t, post.Error)

	failed := &Post{ID: "p2", Status: StatusScheduled}
	failed.MarkFailed("rate limited", now)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Nil(t, failed.PlatformPostID)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "rate limited", *failed.Error)
	require.NotNil(t, failed.FailedAt)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" LinkedIn ")
	require.NoError(t, err)
	assert.Equal(t, PlatformLinkedIn, p)

	p, err = ParsePlatform("x")
	require.NoError(t, err)
	assert.Equal(t, PlatformTwitter, p)

	_, err = ParsePlatform("myspace")
	assert.ErrorIs(t, err, ErrInvalidPlatform)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" Published ")
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, st)

	_, err = ParseStatus("deleted")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

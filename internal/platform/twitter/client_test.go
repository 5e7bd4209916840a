package twitter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/platform"
)

func newTestClient(srv *httptest.Server) *Client {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		BaseURL:           srv.URL + "/2",
		UploadURL:         srv.URL + "/1.1/media/upload.json",
		APIKey:            "key",
		APISecret:         "secret",
		AccessToken:       "token",
		AccessTokenSecret: "token-secret",
		Timeout:           time.Second,
		Retry:             platform.RetryConfig{MaxAttempts: 1},
	}, logger)
}

func TestPublishTweet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "))
		assert.Contains(t, auth, `oauth_consumer_key="key"`)
		assert.Contains(t, auth, `oauth_token="token"`)

		var req createTweetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Nil(t, req.Media)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"t123","text":"hello"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	result, err := newTestClient(srv).Publish(context.Background(), "hello", "")

	require.NoError(t, err)
	assert.Equal(t, "t123", result.PostID)
	assert.Equal(t, "https://x.com/i/web/status/t123", result.URL)
}

func TestPublishTruncatesLongText(t *testing.T) {
	long := strings.Repeat("é", 300)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		var req createTweetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 280, len([]rune(req.Text)))
		assert.True(t, strings.HasSuffix(req.Text, "..."))
		_, _ = io.WriteString(w, `{"data":{"id":"t1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestClient(srv).Publish(context.Background(), long, "")
	require.NoError(t, err)
}

func TestPublishWithMedia(t *testing.T) {
	image := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(image, []byte("png-bytes"), 0o644))

	var (
		mu       sync.Mutex
		commands []string
		appended []byte
	)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /1.1/media/upload.json", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, _, err := r.FormFile("media")
			require.NoError(t, err)
			data, _ := io.ReadAll(file)

			mu.Lock()
			commands = append(commands, r.FormValue("command"))
			appended = append(appended, data...)
			mu.Unlock()
			assert.Equal(t, "m1", r.FormValue("media_id"))
			assert.Equal(t, "0", r.FormValue("segment_index"))
			return
		}

		require.NoError(t, r.ParseForm())
		mu.Lock()
		commands = append(commands, r.PostForm.Get("command"))
		mu.Unlock()
		if r.PostForm.Get("command") == "INIT" {
			assert.Equal(t, "9", r.PostForm.Get("total_bytes"))
			assert.Equal(t, "image/png", r.PostForm.Get("media_type"))
			_, _ = io.WriteString(w, `{"media_id_string":"m1"}`)
			return
		}
		_, _ = io.WriteString(w, `{"media_id_string":"m1"}`)
	})
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		var req createTweetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Media)
		assert.Equal(t, []string{"m1"}, req.Media.MediaIDs)
		_, _ = io.WriteString(w, `{"data":{"id":"t2"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	result, err := newTestClient(srv).Publish(context.Background(), "look", image)

	require.NoError(t, err)
	assert.Equal(t, "t2", result.PostID)
	assert.Equal(t, []string{"INIT", "APPEND", "FINALIZE"}, commands)
	assert.Equal(t, []byte("png-bytes"), appended)
}

func TestPublishSendsTweetOnce(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"t9"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	client.api = platform.NewClient(&http.Client{Timeout: time.Second}, platform.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.Publish(context.Background(), "hello", "")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPublishFailureMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"duplicate content"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestClient(srv).Publish(context.Background(), "hello", "")

	assert.EqualError(t, err, `failed to post to Twitter: 403 - {"detail":"duplicate content"}`)
}

func TestCommentsSkipsRootTweet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "conversation_id:t123", r.URL.Query().Get("query"))
		_, _ = io.WriteString(w, `{"data":[
			{"id":"t123","text":"root","author_id":"me"},
			{"id":"r1","text":"first","author_id":"u1"},
			{"id":"r2","text":"second","author_id":"u2"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	comments, err := newTestClient(srv).Comments(context.Background(), "t123")

	require.NoError(t, err)
	assert.Equal(t, []domain.Comment{
		{ID: "r1", Author: "u1", Text: "first"},
		{ID: "r2", Author: "u2", Text: "second"},
	}, comments)
}

func TestCommentsEmptyConversation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"meta":{"result_count":0}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	comments, err := newTestClient(srv).Comments(context.Background(), "t123")

	require.NoError(t, err)
	assert.Empty(t, comments)
}

package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/platform"
)

const (
	DefaultBaseURL   = "https://api.twitter.com/2"
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

	maxTweetLength = 280
	chunkSize      = 5 * 1024 * 1024
	statusURL      = "https://x.com/i/web/status/"
)

type Config struct {
	BaseURL           string
	UploadURL         string
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	Timeout           time.Duration
	Retry             platform.RetryConfig
}

// Client implements platform.Adapter for the X (Twitter) v2 API using
// OAuth 1.0a user context.
type Client struct {
	api       *platform.Client
	baseURL   string
	uploadURL string
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}

	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	httpClient := oauth1.NewConfig(cfg.APIKey, cfg.APISecret).
		Client(ctx, oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret))
	httpClient.Timeout = cfg.Timeout

	logger = logger.With("platform", domain.PlatformTwitter)
	return &Client{
		api:       platform.NewClient(httpClient, cfg.Retry, logger),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		uploadURL: cfg.UploadURL,
		logger:    logger,
	}
}

func (c *Client) Platform() domain.Platform {
	return domain.PlatformTwitter
}

func (c *Client) Publish(ctx context.Context, content, imagePath string) (*domain.PublishResult, error) {
	payload := createTweetRequest{Text: truncateTweet(content)}

	if imagePath != "" {
		if _, err := os.Stat(imagePath); err == nil {
			mediaID, err := c.uploadMedia(ctx, imagePath)
			if err != nil {
				return nil, fmt.Errorf("failed to upload image to Twitter: %w", err)
			}
			payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
		} else {
			c.logger.Warn("image not found, posting text only", "image_path", imagePath)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tweet: %w", err)
	}

	resp, err := c.api.Do(ctx, "failed to post to Twitter", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var created createTweetResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("decode tweet: %w", err)
	}

	result := &domain.PublishResult{PostID: created.Data.ID}
	if created.Data.ID != "" {
		result.URL = statusURL + created.Data.ID
	}
	return result, nil
}

// Comments returns the replies in the tweet's conversation.
func (c *Client) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	query := url.Values{}
	query.Set("query", "conversation_id:"+postID)
	query.Set("tweet.fields", "in_reply_to_user_id,author_id,created_at,conversation_id")
	endpoint := c.baseURL + "/tweets/search/recent?" + query.Encode()

	resp, err := c.api.Do(ctx, "failed to get tweet replies", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	var decoded searchResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}

	comments := make([]domain.Comment, 0, len(decoded.Data))
	for _, t := range decoded.Data {
		if t.ID == postID {
			continue
		}
		comments = append(comments, domain.Comment{ID: t.ID, Author: t.AuthorID, Text: t.Text})
	}
	return comments, nil
}

// uploadMedia runs the chunked INIT, APPEND, FINALIZE upload and returns the
// media id.
func (c *Client) uploadMedia(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	initForm := url.Values{}
	initForm.Set("command", "INIT")
	initForm.Set("total_bytes", strconv.Itoa(len(data)))
	initForm.Set("media_type", mediaType)

	resp, err := c.postForm(ctx, "failed to initialize media upload", initForm)
	if err != nil {
		return "", err
	}

	var initialized mediaUploadResponse
	if err := json.Unmarshal(resp.Body, &initialized); err != nil {
		return "", fmt.Errorf("decode media upload: %w", err)
	}
	mediaID := initialized.MediaIDString
	if mediaID == "" {
		return "", fmt.Errorf("media upload returned no media id")
	}

	for i, start := 0, 0; start < len(data); i, start = i+1, start+chunkSize {
		end := min(start+chunkSize, len(data))
		if err := c.appendChunk(ctx, mediaID, i, data[start:end]); err != nil {
			return "", err
		}
	}

	finalize := url.Values{}
	finalize.Set("command", "FINALIZE")
	finalize.Set("media_id", mediaID)
	if _, err := c.postForm(ctx, "failed to finalize media upload", finalize); err != nil {
		return "", err
	}

	c.logger.Debug("uploaded media", "media_id", mediaID, "bytes", len(data))
	return mediaID, nil
}

func (c *Client) postForm(ctx context.Context, op string, form url.Values) (*platform.Response, error) {
	encoded := form.Encode()
	return c.api.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) appendChunk(ctx context.Context, mediaID string, index int, chunk []byte) error {
	_, err := c.api.Do(ctx, "failed to append media chunk", func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("command", "APPEND"); err != nil {
			return nil, err
		}
		if err := w.WriteField("media_id", mediaID); err != nil {
			return nil, err
		}
		if err := w.WriteField("segment_index", strconv.Itoa(index)); err != nil {
			return nil, err
		}
		part, err := w.CreateFormFile("media", "chunk")
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, bytes.NewReader(chunk)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	return err
}

func truncateTweet(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTweetLength {
		return text
	}
	return string(runes[:maxTweetLength-3]) + "..."
}

package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/platform"
)

const (
	DefaultBaseURL = "https://api.linkedin.com/v2"

	shareURNPrefix = "urn:li:share:"
	feedURL        = "https://www.linkedin.com/feed/update/"
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	Retry       platform.RetryConfig
}

// Client implements platform.Adapter for the LinkedIn v2 API.
type Client struct {
	api         *platform.Client
	baseURL     string
	accessToken string
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	logger = logger.With("platform", domain.PlatformLinkedIn)
	return &Client{
		api:         platform.NewClient(&http.Client{Timeout: cfg.Timeout}, cfg.Retry, logger),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		logger:      logger,
	}
}

func (c *Client) Platform() domain.Platform {
	return domain.PlatformLinkedIn
}

func (c *Client) Publish(ctx context.Context, content, imagePath string) (*domain.PublishResult, error) {
	author, err := c.authorURN(ctx)
	if err != nil {
		return nil, err
	}

	post := ugcPost{Author: author, LifecycleState: "PUBLISHED"}
	post.SpecificContent.ShareContent = shareContent{
		ShareCommentary:    shareCommentary{Text: content},
		ShareMediaCategory: "NONE",
	}
	post.Visibility.MemberNetworkVisibility = "PUBLIC"

	if imagePath != "" {
		asset, err := c.uploadImage(ctx, author, imagePath)
		if err != nil {
			return nil, err
		}
		post.SpecificContent.ShareContent.ShareMediaCategory = "IMAGE"
		post.SpecificContent.ShareContent.Media = []shareMedia{{
			Status:      "READY",
			Description: textValue{Text: "Image"},
			Media:       asset,
			Title:       textValue{Text: "Image"},
		}}
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}

	resp, err := c.api.Do(ctx, "failed to post to LinkedIn", func(ctx context.Context) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/ugcPosts", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	id := resp.Header.Get("X-RestLi-Id")
	if id == "" {
		var created ugcPostResponse
		if err := json.Unmarshal(resp.Body, &created); err == nil {
			id = created.ID
		}
	}

	c.logger.Debug("created ugc post", "post_id", id)

	result := &domain.PublishResult{PostID: id}
	if id != "" {
		result.URL = feedURL + id
	}
	return result, nil
}

func (c *Client) Comments(ctx context.Context, postID string) ([]domain.Comment, error) {
	urn := postID
	if !strings.HasPrefix(urn, "urn:li:") {
		urn = shareURNPrefix + postID
	}
	endpoint := fmt.Sprintf("%s/socialActions/%s/comments", c.baseURL, url.PathEscape(urn))

	resp, err := c.api.Do(ctx, "failed to get post comments", func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}

	var decoded commentsResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}

	comments := make([]domain.Comment, 0, len(decoded.Elements))
	for _, e := range decoded.Elements {
		comments = append(comments, domain.Comment{
			ID:     e.ID,
			Author: e.Actor,
			Text:   e.Message.Text,
		})
	}
	return comments, nil
}

func (c *Client) authorURN(ctx context.Context) (string, error) {
	resp, err := c.api.Do(ctx, "failed to get user info", func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, c.baseURL+"/me", nil)
	})
	if err != nil {
		return "", err
	}

	var me meResponse
	if err := json.Unmarshal(resp.Body, &me); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}
	if me.ID == "" {
		return "", fmt.Errorf("failed to get user info: empty member id")
	}
	return "urn:li:person:" + me.ID, nil
}

// uploadImage registers an upload for the owner and sends the file to the
// returned upload URL. It returns the digital media asset URN.
func (c *Client) uploadImage(ctx context.Context, owner, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	var register registerUploadRequest
	register.RegisterUploadRequest.Recipes = []string{"urn:li:digitalmediaRecipe:feedshare-image"}
	register.RegisterUploadRequest.Owner = owner
	register.RegisterUploadRequest.ServiceRelationships = []serviceRelationship{{
		RelationshipType: "OWNER",
		Identifier:       "urn:li:userGeneratedContent",
	}}

	body, err := json.Marshal(register)
	if err != nil {
		return "", fmt.Errorf("marshal upload registration: %w", err)
	}

	resp, err := c.api.Do(ctx, "failed to register image upload", func(ctx context.Context) (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/assets?action=registerUpload", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var registered registerUploadResponse
	if err := json.Unmarshal(resp.Body, &registered); err != nil {
		return "", fmt.Errorf("decode upload registration: %w", err)
	}
	uploadURL := registered.Value.UploadMechanism.HTTPRequest.UploadURL
	asset := registered.Value.Asset
	if uploadURL == "" || asset == "" {
		return "", fmt.Errorf("failed to get upload URL or asset from registration response")
	}

	_, err = c.api.Do(ctx, "failed to upload image", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		return req, nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("uploaded image", "asset", asset, "bytes", len(data))
	return asset, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

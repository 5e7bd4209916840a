// Package responder drafts replies to post comments with Gemini.
package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"social_scheduler/internal/domain"
)

const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultFallbackModel = "gemini-2.5-flash-lite"

	systemPrompt = `You manage a brand's social media presence and reply to comments on its posts.
For each comment: acknowledge the commenter, give a thoughtful and helpful reply,
keep a consistent brand voice, and add a call to action only where it fits.
Replies must suit the platform's tone and length limits.`
)

var ErrNoCandidates = errors.New("model returned no content")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey        string
	Model         string
	FallbackModel string
}

// Gemini implements the response generator on the Gemini API. Models are
// tried in order; rate limit and not-found errors move on to the next one.
type Gemini struct {
	models contentGenerator
	names  []string
	logger *slog.Logger
	now    func() time.Time
}

func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(models contentGenerator, cfg Config, logger *slog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	names := []string{cfg.Model}
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.Model {
		names = append(names, cfg.FallbackModel)
	}
	return &Gemini{
		models: models,
		names:  names,
		logger: logger.With("component", "responder"),
		now:    time.Now,
	}
}

type draft struct {
	CommentID string `json:"comment_id"`
	Response  string `json:"response"`
}

func (g *Gemini) Generate(ctx context.Context, platform domain.Platform, postID string, comments []domain.Comment) ([]domain.Response, error) {
	if len(comments) == 0 {
		return []domain.Response{}, nil
	}

	text, err := g.generateWithFallback(ctx, buildPrompt(platform, postID, comments))
	if err != nil {
		return nil, err
	}

	responses, err := parseResponses(text, comments, g.now().UTC())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("generated responses", "post_id", postID, "comments", len(comments), "responses", len(responses))
	return responses, nil
}

func (g *Gemini) generateWithFallback(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	var lastErr error
	for _, model := range g.names {
		result, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if err != nil {
			if isRetryableModelError(err) {
				g.logger.Warn("model unavailable, trying next", "model", model, "error", err)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		text := responseText(result)
		if text == "" {
			lastErr = ErrNoCandidates
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("all models failed: %w", lastErr)
}

func isRetryableModelError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func buildPrompt(platform domain.Platform, postID string, comments []domain.Comment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate responses to the following comments on a %s post (ID: %s):\n\n", platform, postID)
	for _, c := range comments {
		author := c.Author
		if author == "" {
			author = "User"
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", c.ID, author, c.Text)
	}
	sb.WriteString("\nAnswer with a JSON array only, one element per comment, in the form ")
	sb.WriteString(`[{"comment_id": "<id in brackets>", "response": "<reply text>"}].`)
	return sb.String()
}

// parseResponses decodes the model output. Elements without a comment id
// are matched to comments by position.
func parseResponses(text string, comments []domain.Comment, now time.Time) ([]domain.Response, error) {
	var drafts []draft
	if err := json.Unmarshal([]byte(cleanJSON(text)), &drafts); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	responses := make([]domain.Response, 0, len(drafts))
	for i, d := range drafts {
		reply := strings.TrimSpace(d.Response)
		if reply == "" {
			continue
		}
		id := d.CommentID
		if id == "" && i < len(comments) {
			id = comments[i].ID
		}
		responses = append(responses, domain.Response{CommentID: id, Response: reply, Timestamp: now})
	}
	return responses, nil
}

func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

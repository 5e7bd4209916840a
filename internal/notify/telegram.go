// Package notify sends operator notifications about generated responses.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social_scheduler/internal/domain"
)

const maxMessageLength = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a summary of new comments and drafted replies to one chat.
// Replies are never posted to the platform automatically.
type Telegram struct {
	bot    sender
	chatID int64
	logger *slog.Logger
}

func NewTelegram(token, chatID string, logger *slog.Logger) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger = logger.With("component", "telegram")
	logger.Info("telegram notifier ready", "bot", bot.Self.UserName)

	return &Telegram{bot: bot, chatID: id, logger: logger}, nil
}

func (t *Telegram) NotifyResponses(ctx context.Context, post *domain.Post, comments []domain.Comment, responses []domain.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatResponses(post, comments, responses))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	t.logger.Debug("sent notification", "post_id", post.ID, "responses", len(responses))
	return nil
}

func formatResponses(post *domain.Post, comments []domain.Comment, responses []domain.Response) string {
	byID := make(map[string]domain.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*[%s] %d new replies drafted*\n", escapeMarkdown(string(post.Platform)), len(responses))
	fmt.Fprintf(&sb, "_%s_\n", escapeMarkdown(preview(post.Content, 120)))

	for _, r := range responses {
		sb.WriteString("\n")
		if c, ok := byID[r.CommentID]; ok {
			author := c.Author
			if author == "" {
				author = "User"
			}
			fmt.Fprintf(&sb, "💬 %s: %s\n", escapeMarkdown(author), escapeMarkdown(preview(c.Text, 200)))
		}
		fmt.Fprintf(&sb, "↪️ %s\n", escapeMarkdown(r.Response))
	}

	return preview(sb.String(), maxMessageLength)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}

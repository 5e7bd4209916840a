package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"social_scheduler/internal/domain"
)

// SnapshotStore persists the last fetched comments and the generated
// responses of each post, one file per post id. Every save replaces the
// previous file.
type SnapshotStore struct {
	commentsDir  string
	responsesDir string
	logger       *slog.Logger
}

func NewSnapshotStore(commentsDir, responsesDir string, logger *slog.Logger) (*SnapshotStore, error) {
	for _, dir := range []string{commentsDir, responsesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
		}
	}
	return &SnapshotStore{
		commentsDir:  commentsDir,
		responsesDir: responsesDir,
		logger:       logger.With("store", "snapshot"),
	}, nil
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

func (s *SnapshotStore) commentsPath(postID string) string {
	return filepath.Join(s.commentsDir, fileNameReplacer.Replace(postID)+"_comments.json")
}

func (s *SnapshotStore) responsesPath(postID string) string {
	return filepath.Join(s.responsesDir, fileNameReplacer.Replace(postID)+"_responses.json")
}

// LoadComments returns the previous snapshot, or an empty list when none has
// been written yet.
func (s *SnapshotStore) LoadComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	comments := []domain.Comment{}
	if err := readJSON(s.commentsPath(postID), &comments); err != nil {
		return nil, fmt.Errorf("load comments for %s: %w", postID, err)
	}
	return comments, nil
}

func (s *SnapshotStore) SaveComments(ctx context.Context, postID string, comments []domain.Comment) error {
	if err := writeJSON(s.commentsPath(postID), comments); err != nil {
		return fmt.Errorf("save comments for %s: %w", postID, err)
	}
	return nil
}

func (s *SnapshotStore) LoadResponses(ctx context.Context, postID string) ([]domain.Response, error) {
	responses := []domain.Response{}
	if err := readJSON(s.responsesPath(postID), &responses); err != nil {
		return nil, fmt.Errorf("load responses for %s: %w", postID, err)
	}
	return responses, nil
}

func (s *SnapshotStore) SaveResponses(ctx context.Context, postID string, responses []domain.Response) error {
	if err := writeJSON(s.responsesPath(postID), responses); err != nil {
		return fmt.Errorf("save responses for %s: %w", postID, err)
	}
	return nil
}

// readJSON leaves v untouched when the file does not exist.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

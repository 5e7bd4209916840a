// Package api exposes the schedule over HTTP for the operator UI and CLI.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"social_scheduler/internal/domain"
	"social_scheduler/internal/service"
)

type Schedule interface {
	Schedule(ctx context.Context, in service.NewPost) (*domain.Post, error)
	List(ctx context.Context, status domain.Status) []*domain.Post
	Get(ctx context.Context, id string) (*domain.Post, error)
	Cancel(ctx context.Context, id string) (*domain.Post, error)
	Reschedule(ctx context.Context, id string, in service.UpdatePost) (*domain.Post, error)
	Comments(ctx context.Context, id string) ([]domain.Comment, error)
	Responses(ctx context.Context, id string) ([]domain.Response, error)
}

type Publisher interface {
	PublishNow(ctx context.Context, id string) (*domain.Post, error)
}

type History interface {
	Attempts(ctx context.Context, postID string) ([]domain.PublishAttempt, error)
	LoopStates(ctx context.Context) ([]domain.LoopState, error)
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Handler struct {
	schedule  Schedule
	publisher Publisher
	history   History
	logger    *slog.Logger
}

// NewHandler builds the handler. publisher and history may be nil; their
// endpoints then answer 501.
func NewHandler(schedule Schedule, publisher Publisher, history History, logger *slog.Logger) *Handler {
	return &Handler{
		schedule:  schedule,
		publisher: publisher,
		history:   history,
		logger:    logger,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	var status domain.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		status = st
	}
	h.writeJSON(w, http.StatusOK, h.schedule.List(r.Context(), status))
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in service.NewPost
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	post, err := h.schedule.Schedule(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.schedule.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var in service.UpdatePost
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	post, err := h.schedule.Reschedule(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) CancelPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.schedule.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

// PublishPost publishes a scheduled post now. A platform failure still
// answers 200 with the failed record, which carries the adapter's error.
func (h *Handler) PublishPost(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		h.writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "publishing is not configured")
		return
	}

	post, err := h.publisher.PublishNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil && post == nil {
		h.writeServiceError(w, err)
		return
	}
	if err != nil {
		h.logger.Error("failed to save published post", "post_id", post.ID, "error", err)
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) GetComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.schedule.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comments)
}

func (h *Handler) GetResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.schedule.Responses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) GetAttempts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "journal is not configured")
		return
	}

	attempts, err := h.history.Attempts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) GetLoops(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotImplemented, "NOT_CONFIGURED", "journal is not configured")
		return
	}

	states, err := h.history.LoopStates(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, states)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("api error", "code", code, "message", message, "status", status)
	}
	h.writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPostNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrNotScheduled):
		h.writeError(w, http.StatusConflict, "NOT_SCHEDULED", err.Error())
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidPlatform),
		errors.Is(err, domain.ErrInvalidScheduleTime),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, service.ErrImageNotFound):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

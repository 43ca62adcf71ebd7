package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/match/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the match registry operations the HTTP surface exposes.
type Service interface {
	Get(ctx context.Context, id domain.MatchID) (*models.Match, error)
	Confirm(ctx context.Context, id domain.MatchID) (*models.Match, error)
	Reject(ctx context.Context, id domain.MatchID, reason string) (*models.Match, error)
	ListForLostItem(ctx context.Context, lostID domain.LostItemID) ([]*models.Match, error)
	ListForFoundItem(ctx context.Context, foundID domain.FoundItemID) ([]*models.Match, error)
}

type Handler struct {
	logger  *slog.Logger
	matches Service
}

func New(matches Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, matches: matches}
}

// Register mounts the match routes. The caller has already applied the
// authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/matches/{matchID}", h.handleGet)
	r.Post("/matches/{matchID}/confirm", h.handleConfirm)
	r.Post("/matches/{matchID}/reject", h.handleReject)
	r.Get("/lost-items/{itemID}/matches", h.handleListForLostItem)
	r.Get("/found-items/{itemID}/matches", h.handleListForFoundItem)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid match id"))
		return
	}
	match, err := h.matches.Get(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid match id"))
		return
	}
	match, err := h.matches.Confirm(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "confirm match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid match id"))
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	match, err := h.matches.Reject(ctx, id, req.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "reject match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func (h *Handler) handleListForLostItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseLostItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid lost item id"))
		return
	}
	matches, err := h.matches.ListForLostItem(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list matches for lost item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Matches: matches})
}

func (h *Handler) handleListForFoundItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseFoundItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid found item id"))
		return
	}
	matches, err := h.matches.ListForFoundItem(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list matches for found item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Matches: matches})
}

type listResponse struct {
	Matches []*models.Match `json:"matches"`
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "match operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "match operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/history/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the trail reads the HTTP surface exposes.
type Service interface {
	ListRecent(ctx context.Context, limit int) ([]models.Event, error)
	ListForMatch(ctx context.Context, matchID domain.MatchID) ([]models.Event, error)
	ListMine(ctx context.Context) ([]models.Event, error)
}

type Handler struct {
	logger *slog.Logger
	trail  Service
}

func New(trail Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, trail: trail}
}

// Register mounts the history routes. The caller has already applied the
// authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/history", h.handleListRecent)
	r.Get("/history/me", h.handleListMine)
	r.Get("/matches/{matchID}/history", h.handleListForMatch)
}

func (h *Handler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
		limit = parsed
	}
	events, err := h.trail.ListRecent(ctx, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "list recent history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Events: events})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.trail.ListMine(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list own history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Events: events})
}

func (h *Handler) handleListForMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid match id"))
		return
	}
	events, err := h.trail.ListForMatch(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list match history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Events: events})
}

type listResponse struct {
	Events []models.Event `json:"events"`
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "history operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "history operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

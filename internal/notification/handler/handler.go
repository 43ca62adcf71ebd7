package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the notification operations the HTTP surface exposes.
type Service interface {
	ListForUser(ctx context.Context) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID) error
	MarkAllRead(ctx context.Context) (int64, error)
	UnreadCount(ctx context.Context) (int64, error)
}

type Handler struct {
	logger        *slog.Logger
	notifications Service
}

func New(notifications Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, notifications: notifications}
}

// Register mounts the notification routes. The caller has already applied
// the authentication middleware; every route acts on the signed-in user.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Get("/notifications/unread-count", h.handleUnreadCount)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
	r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notifications, err := h.notifications.ListForUser(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Notifications: notifications})
}

type listResponse struct {
	Notifications []*models.Notification `json:"notifications"`
}

type unreadResponse struct {
	Unread int64 `json:"unread"`
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.notifications.UnreadCount(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "count unread notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unreadResponse{Unread: count})
}

type markAllResponse struct {
	Updated int64 `json:"updated"`
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	updated, err := h.notifications.MarkAllRead(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "mark all notifications read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, markAllResponse{Updated: updated})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}
	if err := h.notifications.MarkRead(ctx, id); err != nil {
		h.writeServiceError(ctx, w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "notification operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "notification operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/verification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the verification workflow operations the HTTP surface
// exposes.
type Service interface {
	Escalate(ctx context.Context, matchID domain.MatchID, notes string) (*models.VerificationRequest, error)
	StartReview(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error)
	Confirm(ctx context.Context, id domain.VerificationRequestID, reason string) (*models.VerificationRequest, error)
	Reject(ctx context.Context, id domain.VerificationRequestID, reason string) (*models.VerificationRequest, error)
	SuperviseRestitution(ctx context.Context, id domain.VerificationRequestID, notes string) (*models.VerificationRequest, error)
	Get(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error)
	ListOpen(ctx context.Context) ([]*models.VerificationRequest, error)
}

type Handler struct {
	logger   *slog.Logger
	workflow Service
}

func New(workflow Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, workflow: workflow}
}

// Register mounts the verification routes. The caller has already applied
// the authentication middleware; capability checks live in the service.
func (h *Handler) Register(r chi.Router) {
	r.Post("/matches/{matchID}/escalate", h.handleEscalate)
	r.Get("/verifications", h.handleListOpen)
	r.Get("/verifications/{requestID}", h.handleGet)
	r.Post("/verifications/{requestID}/review", h.handleStartReview)
	r.Post("/verifications/{requestID}/confirm", h.handleConfirm)
	r.Post("/verifications/{requestID}/reject", h.handleReject)
	r.Post("/verifications/{requestID}/supervise", h.handleSupervise)
}

type escalateRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleEscalate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID, err := domain.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid match id"))
		return
	}
	var req escalateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	created, err := h.workflow.Escalate(ctx, matchID, req.Notes)
	if err != nil {
		h.writeServiceError(ctx, w, "escalate match", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requests, err := h.workflow.ListOpen(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list open verifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Requests: requests})
}

type listResponse struct {
	Requests []*models.VerificationRequest `json:"verification_requests"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.Get(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleStartReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.StartReview(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "start review", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

type decisionRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body, ok := h.decisionBody(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.Confirm(ctx, id, body.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "confirm verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body, ok := h.decisionBody(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.Reject(ctx, id, body.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "reject verification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) handleSupervise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	body, ok := h.decisionBody(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.SuperviseRestitution(ctx, id, body.Notes)
	if err != nil {
		h.writeServiceError(ctx, w, "supervise restitution", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (domain.VerificationRequestID, bool) {
	id, err := domain.ParseVerificationRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid verification request id"))
		return domain.VerificationRequestID{}, false
	}
	return id, true
}

func (h *Handler) decisionBody(w http.ResponseWriter, r *http.Request) (decisionRequest, bool) {
	var body decisionRequest
	if r.Body == nil || r.ContentLength == 0 {
		return body, true
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return body, false
	}
	return body, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "verification operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "verification operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

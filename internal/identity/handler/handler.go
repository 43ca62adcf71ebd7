package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/identity/models"
	"findmyid/internal/identity/service"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the identity operations the HTTP surface exposes.
type Service interface {
	Register(ctx context.Context, input service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*service.Session, error)
	Me(ctx context.Context) (*models.User, error)
}

type Handler struct {
	logger   *slog.Logger
	identity Service
}

func New(identity Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, identity: identity}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
}

// Register mounts the routes that require an authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role,omitempty"`
	BootstrapToken string `json:"bootstrap_token,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	user, err := h.identity.Register(ctx, service.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		Role:           domain.Role(req.Role),
		BootstrapToken: req.BootstrapToken,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	session, err := h.identity.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(ctx, w, "login", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(session.ExpiresIn.Seconds()),
		User:        session.User,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.identity.Me(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "get profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "identity operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "identity operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

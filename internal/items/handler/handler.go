package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/items/models"
	"findmyid/internal/items/service"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the declaration operations the HTTP surface exposes.
type Service interface {
	DeclareLost(ctx context.Context, input service.DeclareLostInput) (*models.LostItem, error)
	UpdateLost(ctx context.Context, id domain.LostItemID, input service.UpdateLostInput) (*models.LostItem, error)
	CloseLost(ctx context.Context, id domain.LostItemID) (*models.LostItem, error)
	DeclareFound(ctx context.Context, input service.DeclareFoundInput) (*models.FoundItem, error)
	GetLost(ctx context.Context, id domain.LostItemID) (*models.LostItem, error)
	GetFound(ctx context.Context, id domain.FoundItemID) (*models.FoundItem, error)
	ListMyLost(ctx context.Context) ([]*models.LostItem, error)
	ListMyFound(ctx context.Context) ([]*models.FoundItem, error)
}

type Handler struct {
	logger *slog.Logger
	items  Service
}

func New(items Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, items: items}
}

// Register mounts the declaration routes. The caller has already applied the
// authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/lost-items", h.handleDeclareLost)
	r.Get("/lost-items", h.handleListMyLost)
	r.Get("/lost-items/{itemID}", h.handleGetLost)
	r.Put("/lost-items/{itemID}", h.handleUpdateLost)
	r.Post("/lost-items/{itemID}/close", h.handleCloseLost)
	r.Post("/found-items", h.handleDeclareFound)
	r.Get("/found-items", h.handleListMyFound)
	r.Get("/found-items/{itemID}", h.handleGetFound)
}

type lostItemRequest struct {
	DocumentTypeID string    `json:"document_type_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	DocumentNumber string    `json:"document_number"`
	LostDate       time.Time `json:"lost_date"`
	LostLocation   string    `json:"lost_location"`
	Description    string    `json:"description"`
	ContactPhone   string    `json:"contact_phone"`
	ContactEmail   string    `json:"contact_email"`
}

func (h *Handler) handleDeclareLost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req lostItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	docTypeID, err := domain.ParseDocumentTypeID(req.DocumentTypeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document type id"))
		return
	}
	item, err := h.items.DeclareLost(ctx, service.DeclareLostInput{
		DocumentTypeID: docTypeID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DateOfBirth:    req.DateOfBirth,
		DocumentNumber: req.DocumentNumber,
		LostDate:       req.LostDate,
		LostLocation:   req.LostLocation,
		Description:    req.Description,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "declare lost item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateLost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseLostItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid lost item id"))
		return
	}
	var req lostItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	item, err := h.items.UpdateLost(ctx, id, service.UpdateLostInput{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DateOfBirth:    req.DateOfBirth,
		DocumentNumber: req.DocumentNumber,
		LostDate:       req.LostDate,
		LostLocation:   req.LostLocation,
		Description:    req.Description,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "update lost item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleCloseLost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseLostItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid lost item id"))
		return
	}
	item, err := h.items.CloseLost(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "close lost item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

type foundItemRequest struct {
	DocumentTypeID string    `json:"document_type_id"`
	ImageRef       string    `json:"image_ref"`
	FoundDate      time.Time `json:"found_date"`
	FoundLocation  string    `json:"found_location"`
	Description    string    `json:"description"`
	ContactPhone   string    `json:"contact_phone"`
	ContactEmail   string    `json:"contact_email"`
}

func (h *Handler) handleDeclareFound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req foundItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	docTypeID, err := domain.ParseDocumentTypeID(req.DocumentTypeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document type id"))
		return
	}
	item, err := h.items.DeclareFound(ctx, service.DeclareFoundInput{
		DocumentTypeID: docTypeID,
		ImageRef:       req.ImageRef,
		FoundDate:      req.FoundDate,
		FoundLocation:  req.FoundLocation,
		Description:    req.Description,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "declare found item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGetLost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseLostItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid lost item id"))
		return
	}
	item, err := h.items.GetLost(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get lost item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleGetFound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseFoundItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid found item id"))
		return
	}
	item, err := h.items.GetFound(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get found item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) handleListMyLost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.items.ListMyLost(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list lost items", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lostListResponse{Items: items})
}

func (h *Handler) handleListMyFound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	items, err := h.items.ListMyFound(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "list found items", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, foundListResponse{Items: items})
}

type lostListResponse struct {
	Items []*models.LostItem `json:"items"`
}

type foundListResponse struct {
	Items []*models.FoundItem `json:"items"`
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "item operation failed",
			"op", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, op+" failed"))
		return
	}
	h.logger.WarnContext(ctx, "item operation refused",
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

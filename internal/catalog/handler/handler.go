package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"findmyid/internal/catalog/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/httputil"
	"findmyid/pkg/requestcontext"
)

// Service defines the catalog reads the HTTP surface exposes.
type Service interface {
	List(ctx context.Context) ([]*models.DocumentType, error)
	Get(ctx context.Context, id domain.DocumentTypeID) (*models.DocumentType, error)
}

type Handler struct {
	logger  *slog.Logger
	catalog Service
}

func New(catalog Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, catalog: catalog}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/document-types", h.handleList)
	r.Get("/document-types/{docTypeID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	types, err := h.catalog.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list document types",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list document types"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{DocumentTypes: types})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDocumentTypeID(chi.URLParam(r, "docTypeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid document type id"))
		return
	}
	dt, err := h.catalog.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dt)
}

type listResponse struct {
	DocumentTypes []*models.DocumentType `json:"document_types"`
}

package service

import (
	"context"
	"errors"

	"findmyid/internal/catalog/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
)

// Store is the persistence contract the catalog service depends on.
type Store interface {
	Create(ctx context.Context, dt *models.DocumentType) error
	FindByID(ctx context.Context, id domain.DocumentTypeID) (*models.DocumentType, error)
	List(ctx context.Context) ([]*models.DocumentType, error)
}

// Service exposes the read-mostly document type catalog.
type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context) ([]*models.DocumentType, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id domain.DocumentTypeID) (*models.DocumentType, error) {
	dt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document type")
	}
	return dt, nil
}

// Seed inserts the default document types, skipping any already present.
func (s *Service) Seed(ctx context.Context) error {
	defaults := []string{
		"Carte nationale d'identité",
		"Passeport",
		"Permis de conduire",
		"Carte de séjour",
	}
	for _, name := range defaults {
		dt := &models.DocumentType{ID: domain.NewDocumentTypeID(), Name: name}
		if err := s.store.Create(ctx, dt); err != nil && !errors.Is(err, sentinel.ErrDuplicate) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed document types")
		}
	}
	return nil
}

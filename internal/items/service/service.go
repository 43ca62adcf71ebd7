// Package service implements the declaration flows: citizens declare lost
// documents, finders declare found ones, and every declaration or edit feeds
// the match registry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	catalogmodels "findmyid/internal/catalog/models"
	historymodels "findmyid/internal/history/models"
	"findmyid/internal/items/models"
	"findmyid/internal/ocr"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

type LostStore interface {
	Create(ctx context.Context, item *models.LostItem) error
	FindByID(ctx context.Context, id domain.LostItemID) (*models.LostItem, error)
	Execute(ctx context.Context, id domain.LostItemID, validate func(*models.LostItem) error, mutate func(*models.LostItem)) (*models.LostItem, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]*models.LostItem, error)
}

type FoundStore interface {
	Create(ctx context.Context, item *models.FoundItem) error
	FindByID(ctx context.Context, id domain.FoundItemID) (*models.FoundItem, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]*models.FoundItem, error)
}

// Catalog resolves document type references.
type Catalog interface {
	Get(ctx context.Context, id domain.DocumentTypeID) (*catalogmodels.DocumentType, error)
}

// Evaluator is the match registry entry point fed by declarations and edits.
type Evaluator interface {
	EvaluateLostItem(ctx context.Context, id domain.LostItemID) error
	EvaluateFoundItem(ctx context.Context, id domain.FoundItemID) error
}

// Recorder appends to the action trail without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, event historymodels.Event)
}

type Config struct {
	Lost      LostStore
	Found     FoundStore
	Catalog   Catalog
	Extractor ocr.Extractor
	Evaluator Evaluator
	Recorder  Recorder
	Logger    *slog.Logger
}

type Service struct {
	lost      LostStore
	found     FoundStore
	catalog   Catalog
	extractor ocr.Extractor
	evaluator Evaluator
	recorder  Recorder
	logger    *slog.Logger
}

func NewService(cfg Config) *Service {
	return &Service{
		lost:      cfg.Lost,
		found:     cfg.Found,
		catalog:   cfg.Catalog,
		extractor: cfg.Extractor,
		evaluator: cfg.Evaluator,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
	}
}

// DeclareLostInput carries a loss declaration.
type DeclareLostInput struct {
	DocumentTypeID domain.DocumentTypeID
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
	DocumentNumber string
	LostDate       time.Time
	LostLocation   string
	Description    string
	ContactPhone   string
	ContactEmail   string
}

func (s *Service) DeclareLost(ctx context.Context, input DeclareLostInput) (*models.LostItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.catalog.Get(ctx, input.DocumentTypeID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	item := &models.LostItem{
		ID:             domain.NewLostItemID(),
		UserID:         actor.UserID,
		DocumentTypeID: input.DocumentTypeID,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		DateOfBirth:    input.DateOfBirth,
		DocumentNumber: input.DocumentNumber,
		LostDate:       input.LostDate,
		LostLocation:   input.LostLocation,
		Description:    input.Description,
		ContactPhone:   input.ContactPhone,
		ContactEmail:   input.ContactEmail,
		Status:         models.LostStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.lost.Create(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create lost item")
	}

	s.record(ctx, historymodels.Event{
		Action:      historymodels.ActionLostDeclared,
		Description: "lost document declared at " + item.LostLocation,
	})
	s.evaluateLost(ctx, item.ID)
	return item, nil
}

// UpdateLostInput carries an owner edit of an active declaration. Identity
// and circumstance fields are replaced wholesale.
type UpdateLostInput struct {
	FirstName      string
	LastName       string
	DateOfBirth    time.Time
	DocumentNumber string
	LostDate       time.Time
	LostLocation   string
	Description    string
	ContactPhone   string
	ContactEmail   string
}

func (s *Service) UpdateLost(ctx context.Context, id domain.LostItemID, input UpdateLostInput) (*models.LostItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	item, err := s.lost.Execute(ctx, id,
		func(item *models.LostItem) error {
			if item.UserID != actor.UserID {
				return dErrors.New(dErrors.CodeUnauthorized, "only the declaring user may edit this item")
			}
			if !item.Editable() {
				return dErrors.New(dErrors.CodeInvalidTransition, "lost item is no longer editable")
			}
			draft := *item
			applyLostUpdate(&draft, input)
			return draft.Validate()
		},
		func(item *models.LostItem) {
			applyLostUpdate(item, input)
			item.UpdatedAt = now
		},
	)
	if err != nil {
		return nil, translateLostError(err)
	}

	s.record(ctx, historymodels.Event{
		Action:      historymodels.ActionLostUpdated,
		Description: "lost document declaration edited",
	})
	// Content changed: stale pending matches must be rescored and new
	// candidates evaluated.
	s.evaluateLost(ctx, item.ID)
	return item, nil
}

func applyLostUpdate(item *models.LostItem, input UpdateLostInput) {
	item.FirstName = input.FirstName
	item.LastName = input.LastName
	item.DateOfBirth = input.DateOfBirth
	item.DocumentNumber = input.DocumentNumber
	item.LostDate = input.LostDate
	item.LostLocation = input.LostLocation
	item.Description = input.Description
	item.ContactPhone = input.ContactPhone
	item.ContactEmail = input.ContactEmail
}

func (s *Service) CloseLost(ctx context.Context, id domain.LostItemID) (*models.LostItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	now := requestcontext.Now(ctx)
	item, err := s.lost.Execute(ctx, id,
		func(item *models.LostItem) error {
			if item.UserID != actor.UserID {
				return dErrors.New(dErrors.CodeUnauthorized, "only the declaring user may close this item")
			}
			return item.CanClose()
		},
		func(item *models.LostItem) {
			item.ApplyClose(now)
		},
	)
	if err != nil {
		return nil, translateLostError(err)
	}

	s.record(ctx, historymodels.Event{
		Action:      historymodels.ActionLostClosed,
		Description: "lost document declaration withdrawn",
	})
	return item, nil
}

// DeclareFoundInput carries a found-document declaration. Identity fields
// come from OCR, not from the finder.
type DeclareFoundInput struct {
	DocumentTypeID domain.DocumentTypeID
	ImageRef       string
	FoundDate      time.Time
	FoundLocation  string
	Description    string
	ContactPhone   string
	ContactEmail   string
}

func (s *Service) DeclareFound(ctx context.Context, input DeclareFoundInput) (*models.FoundItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, err := s.catalog.Get(ctx, input.DocumentTypeID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	item := &models.FoundItem{
		ID:             domain.NewFoundItemID(),
		UserID:         actor.UserID,
		DocumentTypeID: input.DocumentTypeID,
		ImageRef:       input.ImageRef,
		FoundDate:      input.FoundDate,
		FoundLocation:  input.FoundLocation,
		Description:    input.Description,
		ContactPhone:   input.ContactPhone,
		ContactEmail:   input.ContactEmail,
		Status:         models.FoundStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// A failed extraction does not block the declaration: the item enters
	// the pool without identity fields and scores accordingly.
	fields, err := s.extractor.Extract(ctx, input.ImageRef)
	if err != nil {
		s.logger.WarnContext(ctx, "document extraction failed",
			"found_item_id", item.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		item.FirstName = fields.FirstName
		item.LastName = fields.LastName
		item.DateOfBirth = fields.BirthDate
		item.DocumentNumber = fields.DocumentNumber
		confidence := fields.Confidence
		item.OCRConfidence = &confidence
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.found.Create(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create found item")
	}

	s.record(ctx, historymodels.Event{
		Action:      historymodels.ActionFoundDeclared,
		Description: "found document declared at " + item.FoundLocation,
	})
	s.evaluateFound(ctx, item.ID)
	return item, nil
}

func (s *Service) GetLost(ctx context.Context, id domain.LostItemID) (*models.LostItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	item, err := s.lost.FindByID(ctx, id)
	if err != nil {
		return nil, translateLostError(err)
	}
	if item.UserID != actor.UserID && !actor.Can(domain.CapabilityModerateMatches) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the declaring user may view this item")
	}
	return item, nil
}

func (s *Service) GetFound(ctx context.Context, id domain.FoundItemID) (*models.FoundItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	item, err := s.found.FindByID(ctx, id)
	if err != nil {
		return nil, translateFoundError(err)
	}
	if item.UserID != actor.UserID && !actor.Can(domain.CapabilityModerateMatches) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the declaring user may view this item")
	}
	return item, nil
}

func (s *Service) ListMyLost(ctx context.Context) ([]*models.LostItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.lost.ListByUser(ctx, actor.UserID)
}

func (s *Service) ListMyFound(ctx context.Context) ([]*models.FoundItem, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return s.found.ListByUser(ctx, actor.UserID)
}

// evaluateLost feeds the registry. Evaluation failures are logged, never
// surfaced: the declaration already succeeded.
func (s *Service) evaluateLost(ctx context.Context, id domain.LostItemID) {
	if s.evaluator == nil {
		return
	}
	if err := s.evaluator.EvaluateLostItem(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "match evaluation failed",
			"lost_item_id", id.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) evaluateFound(ctx context.Context, id domain.FoundItemID) {
	if s.evaluator == nil {
		return
	}
	if err := s.evaluator.EvaluateFoundItem(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "match evaluation failed",
			"found_item_id", id.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) record(ctx context.Context, event historymodels.Event) {
	if s.recorder == nil {
		return
	}
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		event.ActorID = actor.UserID
	}
	event.OccurredAt = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	s.recorder.Record(ctx, event)
}

func translateLostError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "lost item not found")
	}
	return err
}

func translateFoundError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "found item not found")
	}
	return err
}

// Package service implements the verification workflow: the human identity
// check that stands between a confirmed match and the physical hand-over of
// a document.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	historymodels "findmyid/internal/history/models"
	matchmodels "findmyid/internal/match/models"
	notifmodels "findmyid/internal/notification/models"
	"findmyid/internal/verification/metrics"
	"findmyid/internal/verification/models"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, req *models.VerificationRequest) error
	FindByID(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error)
	FindOpenByMatch(ctx context.Context, matchID domain.MatchID) (*models.VerificationRequest, error)
	Execute(ctx context.Context, id domain.VerificationRequestID, validate func(*models.VerificationRequest) error, mutate func(*models.VerificationRequest)) (*models.VerificationRequest, error)
	ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.VerificationRequest, error)
	ListOpen(ctx context.Context) ([]*models.VerificationRequest, error)
}

// Registry is the slice of the match registry the workflow drives.
type Registry interface {
	Get(ctx context.Context, id domain.MatchID) (*matchmodels.Match, error)
	EnsureConfirmed(ctx context.Context, id domain.MatchID) (*matchmodels.Match, error)
	RejectByDecision(ctx context.Context, id domain.MatchID, reason string) (*matchmodels.Match, error)
	Complete(ctx context.Context, id domain.MatchID) (*matchmodels.Match, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notifmodels.Notification) error
}

type Recorder interface {
	Record(ctx context.Context, event historymodels.Event)
}

// Reviewers resolves the users who should hear about new escalations.
type Reviewers interface {
	ListByRole(ctx context.Context, role domain.Role) ([]domain.UserID, error)
}

type Config struct {
	Store     Store
	Registry  Registry
	Notifier  Notifier
	Recorder  Recorder
	Reviewers Reviewers
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

type Service struct {
	store     Store
	registry  Registry
	notifier  Notifier
	recorder  Recorder
	reviewers Reviewers
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(cfg Config) *Service {
	return &Service{
		store:     cfg.Store,
		registry:  cfg.Registry,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		reviewers: cfg.Reviewers,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("findmyid/verification"),
	}
}

// Escalate opens a verification request on a match. One open request per
// match: a second escalation reports AlreadyEscalated, which callers treat
// as success-equivalent.
func (s *Service) Escalate(ctx context.Context, matchID domain.MatchID, notes string) (*models.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Escalate",
		trace.WithAttributes(attribute.String("match_id", matchID.String())))
	defer span.End()

	actor, err := s.requireCapability(ctx, domain.CapabilityEscalateVerification)
	if err != nil {
		return nil, err
	}

	match, err := s.registry.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status.Terminal() {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			"cannot escalate a match in status "+string(match.Status))
	}

	now := requestcontext.Now(ctx)
	req := &models.VerificationRequest{
		ID:          domain.NewVerificationRequestID(),
		MatchID:     matchID,
		RequestedBy: actor.UserID,
		Status:      models.StatusPending,
		Notes:       strings.TrimSpace(notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.Create(ctx, req)
	if errors.Is(err, sentinel.ErrDuplicate) {
		return nil, dErrors.New(dErrors.CodeAlreadyEscalated,
			"an open verification request already exists for this match")
	}
	if err != nil {
		return nil, fmt.Errorf("create verification request: %w", err)
	}

	s.metrics.IncrementTransition(string(models.StatusPending))
	s.record(ctx, historymodels.Event{
		OccurredAt: now,
		Action:     historymodels.ActionVerifEscalated,
		MatchID:    &matchID,
	})
	s.notifyReviewers(ctx, req)
	return req, nil
}

// StartReview assigns the acting public admin to a pending request.
func (s *Service) StartReview(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error) {
	actor, err := s.requireCapability(ctx, domain.CapabilityDecideVerification)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	req, err := s.store.Execute(ctx, id,
		func(v *models.VerificationRequest) error { return v.CanStartReview() },
		func(v *models.VerificationRequest) { v.ApplyStartReview(actor.UserID, now) },
	)
	if err != nil {
		return nil, translateNotFound(err)
	}

	s.metrics.IncrementTransition(string(models.StatusInReview))
	s.record(ctx, historymodels.Event{
		OccurredAt: now,
		Action:     historymodels.ActionVerifReviewStart,
		MatchID:    &req.MatchID,
	})
	return req, nil
}

// Confirm records a positive identity decision. The underlying match is
// confirmed first; when it can no longer be confirmed (the found item was
// claimed by a competing match) the decision fails and the request keeps its
// current state. Restitution has not happened yet so the match is not
// completed.
func (s *Service) Confirm(ctx context.Context, id domain.VerificationRequestID, reason string) (*models.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Confirm",
		trace.WithAttributes(attribute.String("request_id", id.String())))
	defer span.End()

	if _, err := s.requireCapability(ctx, domain.CapabilityDecideVerification); err != nil {
		return nil, err
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if err := current.CanConfirm(); err != nil {
		return nil, err
	}
	if _, err := s.registry.EnsureConfirmed(ctx, current.MatchID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	req, err := s.store.Execute(ctx, id,
		func(v *models.VerificationRequest) error { return v.CanConfirm() },
		func(v *models.VerificationRequest) { v.ApplyConfirm(strings.TrimSpace(reason), now) },
	)
	if err != nil {
		return nil, translateNotFound(err)
	}

	s.metrics.IncrementTransition(string(models.StatusConfirmed))
	s.metrics.ObserveDecisionLatency(now.Sub(req.CreatedAt))
	s.record(ctx, historymodels.Event{
		OccurredAt:  now,
		Action:      historymodels.ActionVerifConfirmed,
		Description: req.DecisionReason,
		MatchID:     &req.MatchID,
	})
	return req, nil
}

// Reject records a failed identity check and rejects the underlying match,
// returning both items to circulation. The reason is mandatory.
func (s *Service) Reject(ctx context.Context, id domain.VerificationRequestID, reason string) (*models.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Reject",
		trace.WithAttributes(attribute.String("request_id", id.String())))
	defer span.End()

	if _, err := s.requireCapability(ctx, domain.CapabilityDecideVerification); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a rejection reason is required")
	}

	now := requestcontext.Now(ctx)
	req, err := s.store.Execute(ctx, id,
		func(v *models.VerificationRequest) error { return v.CanReject() },
		func(v *models.VerificationRequest) { v.ApplyReject(reason, now) },
	)
	if err != nil {
		return nil, translateNotFound(err)
	}

	if _, err := s.registry.RejectByDecision(ctx, req.MatchID, reason); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidTransition) && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to reject match after verification",
				"request_id", id, "match_id", req.MatchID, "error", err)
		}
	}

	s.metrics.IncrementTransition(string(models.StatusRejected))
	s.metrics.ObserveDecisionLatency(now.Sub(req.CreatedAt))
	s.record(ctx, historymodels.Event{
		OccurredAt:  now,
		Action:      historymodels.ActionVerifRejected,
		Description: reason,
		MatchID:     &req.MatchID,
	})
	return req, nil
}

// SuperviseRestitution closes a confirmed request after the document changed
// hands in front of the admin, completing the match. The match completes
// before the request goes terminal, so a failed completion leaves the
// request confirmed and the operation retryable.
func (s *Service) SuperviseRestitution(ctx context.Context, id domain.VerificationRequestID, notes string) (*models.VerificationRequest, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.SuperviseRestitution",
		trace.WithAttributes(attribute.String("request_id", id.String())))
	defer span.End()

	if _, err := s.requireCapability(ctx, domain.CapabilityDecideVerification); err != nil {
		return nil, err
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	if err := current.CanSupervise(); err != nil {
		return nil, err
	}
	if _, err := s.registry.Complete(ctx, current.MatchID); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to complete match during restitution",
				"request_id", id, "match_id", current.MatchID, "error", err)
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	req, err := s.store.Execute(ctx, id,
		func(v *models.VerificationRequest) error { return v.CanSupervise() },
		func(v *models.VerificationRequest) { v.ApplySupervise(strings.TrimSpace(notes), now) },
	)
	if err != nil {
		return nil, translateNotFound(err)
	}

	s.metrics.IncrementTransition(string(models.StatusSupervised))
	s.record(ctx, historymodels.Event{
		OccurredAt: now,
		Action:     historymodels.ActionRestitutionDone,
		MatchID:    &req.MatchID,
	})
	return req, nil
}

// Get returns one request to any actor holding a verification capability.
func (s *Service) Get(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error) {
	if err := s.requireAnyVerificationCapability(ctx); err != nil {
		return nil, err
	}
	req, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err)
	}
	return req, nil
}

// ListOpen returns the review queue, oldest first.
func (s *Service) ListOpen(ctx context.Context) ([]*models.VerificationRequest, error) {
	if err := s.requireAnyVerificationCapability(ctx); err != nil {
		return nil, err
	}
	return s.store.ListOpen(ctx)
}

func (s *Service) requireCapability(ctx context.Context, cap domain.Capability) (requestcontext.Actor, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !actor.Can(cap) {
		return requestcontext.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "missing capability")
	}
	return actor, nil
}

func (s *Service) requireAnyVerificationCapability(ctx context.Context) error {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actor.Can(domain.CapabilityDecideVerification) || actor.Can(domain.CapabilityEscalateVerification) {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "missing capability")
}

// notifyReviewers fans the escalation out to every public admin.
func (s *Service) notifyReviewers(ctx context.Context, req *models.VerificationRequest) {
	if s.notifier == nil || s.reviewers == nil {
		return
	}
	admins, err := s.reviewers.ListByRole(ctx, domain.RolePublicAdmin)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to list reviewers for escalation",
				"request_id", req.ID, "error", err)
		}
		return
	}
	for _, admin := range admins {
		n := notifmodels.Notification{
			EventID: "verification_escalated:" + req.ID.String() + ":" + admin.String(),
			UserID:  admin,
			MatchID: &req.MatchID,
			Type:    notifmodels.TypeVerificationEscalated,
			Title:   "Vérification demandée",
			Message: "Une correspondance attend une vérification d'identité.",
		}
		if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "notification delivery failed",
				"event_id", n.EventID, "user_id", admin, "error", err)
		}
	}
}

func (s *Service) record(ctx context.Context, event historymodels.Event) {
	if s.recorder == nil {
		return
	}
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		event.ActorID = actor.UserID
	}
	event.RequestID = requestcontext.RequestID(ctx)
	s.recorder.Record(ctx, event)
}

func translateNotFound(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "verification request not found")
	}
	return err
}

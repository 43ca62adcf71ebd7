// Package service implements registration and login, and resolves reviewer
// pools for the verification workflow.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	historymodels "findmyid/internal/history/models"
	"findmyid/internal/identity/models"
	"findmyid/internal/platform/metrics"
	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/requestcontext"
)

const minPasswordLength = 8

type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]*models.User, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID domain.UserID, role domain.Role) (string, error)
	TTL() time.Duration
}

// Recorder appends to the platform history trail.
type Recorder interface {
	Record(ctx context.Context, event historymodels.Event)
}

type Service struct {
	store          Store
	tokens         TokenIssuer
	recorder       Recorder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	bootstrapToken string
}

type Config struct {
	Store    Store
	Tokens   TokenIssuer
	Recorder Recorder
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	// BootstrapToken gates registration of administrative roles. Empty means
	// only citizens can self-register.
	BootstrapToken string
}

func NewService(cfg Config) *Service {
	return &Service{
		store:          cfg.Store,
		tokens:         cfg.Tokens,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		bootstrapToken: cfg.BootstrapToken,
	}
}

// RegisterInput carries a registration request. Role defaults to citizen;
// administrative roles additionally require the bootstrap token.
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	Role           domain.Role
	BootstrapToken string
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if len(input.Password) < minPasswordLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "password must be at least 8 characters")
	}
	role := input.Role
	if role == "" {
		role = domain.RoleCitizen
	}
	if role != domain.RoleCitizen {
		if s.bootstrapToken == "" ||
			subtle.ConstantTimeCompare([]byte(input.BootstrapToken), []byte(s.bootstrapToken)) != 1 {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "administrative registration requires a valid bootstrap token")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := &models.User{
		ID:           domain.NewUserID(),
		Username:     input.Username,
		Email:        input.Email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.metrics.IncrementUsersRegistered()
	if s.recorder != nil {
		s.recorder.Record(ctx, historymodels.Event{
			OccurredAt:  user.CreatedAt,
			ActorID:     user.ID,
			Action:      historymodels.ActionUserRegistered,
			Description: "account created with role " + string(user.Role),
			RequestID:   requestcontext.RequestID(ctx),
		})
	}
	return user, nil
}

// Session is the result of a successful login.
type Session struct {
	User        *models.User
	AccessToken string
	ExpiresIn   time.Duration
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Burn a comparison so a probe cannot distinguish an unknown
			// username from a wrong password by timing.
			_ = bcrypt.CompareHashAndPassword(
				[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
				[]byte(password))
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &Session{User: user, AccessToken: token, ExpiresIn: s.tokens.TTL()}, nil
}

// Me returns the calling user's own record.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.store.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return user, nil
}

// ListByRole returns the IDs of all users holding the role. The verification
// workflow uses it to fan escalation notices out to reviewers.
func (s *Service) ListByRole(ctx context.Context, role domain.Role) ([]domain.UserID, error) {
	users, err := s.store.ListByRole(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	ids := make([]domain.UserID, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

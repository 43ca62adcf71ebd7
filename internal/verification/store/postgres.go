package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"findmyid/internal/verification/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/platform/tx"
)

// Postgres persists verification requests. The verification_requests_open_idx
// partial unique index guarantees one open request per match; Create
// surfaces a violation as sentinel.ErrDuplicate.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, match_id, requested_by, assigned_to, status,
	notes, decision_reason, created_at, decided_at, updated_at`

func (s *Postgres) Create(ctx context.Context, req *models.VerificationRequest) error {
	_, err := s.exec(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID.String(), req.MatchID.String(), req.RequestedBy.String(),
		userIDString(req.AssignedTo), string(req.Status),
		req.Notes, req.DecisionReason, req.CreatedAt, req.DecidedAt, req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.VerificationRequestID) (*models.VerificationRequest, error) {
	row := s.queryRow(ctx,
		`SELECT `+requestColumns+` FROM verification_requests WHERE id = $1`, id.String())
	return scanRequest(row)
}

func (s *Postgres) FindOpenByMatch(ctx context.Context, matchID domain.MatchID) (*models.VerificationRequest, error) {
	row := s.queryRow(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE match_id = $1 AND status IN ($2, $3, $4)`,
		matchID.String(),
		string(models.StatusPending), string(models.StatusInReview), string(models.StatusConfirmed))
	return scanRequest(row)
}

func (s *Postgres) Update(ctx context.Context, req *models.VerificationRequest) error {
	res, err := s.exec(ctx, `
		UPDATE verification_requests SET
			assigned_to = $2, status = $3, notes = $4,
			decision_reason = $5, decided_at = $6, updated_at = $7
		WHERE id = $1`,
		req.ID.String(), userIDString(req.AssignedTo), string(req.Status),
		req.Notes, req.DecisionReason, req.DecidedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Execute(
	ctx context.Context,
	id domain.VerificationRequestID,
	validate func(*models.VerificationRequest) error,
	mutate func(*models.VerificationRequest),
) (*models.VerificationRequest, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after commit

	txCtx := tx.WithTx(ctx, dbtx)
	row := dbtx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM verification_requests WHERE id = $1 FOR UPDATE`, id.String())
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := validate(req); err != nil {
		return nil, err
	}
	mutate(req)

	if err := s.Update(txCtx, req); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return req, nil
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.RequestStatus) ([]*models.VerificationRequest, error) {
	return s.list(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE status = $1
		ORDER BY created_at, id`,
		string(status))
}

func (s *Postgres) ListOpen(ctx context.Context) ([]*models.VerificationRequest, error) {
	return s.list(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at, id`,
		string(models.StatusPending), string(models.StatusInReview), string(models.StatusConfirmed))
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.VerificationRequest, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	defer rows.Close()

	var out []*models.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Postgres) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx.QueryContext(ctx, query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Postgres) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if dbtx, ok := tx.From(ctx); ok {
		return dbtx.QueryRowContext(ctx, query, args...)
	}
	return s.db.QueryRowContext(ctx, query, args...)
}

func userIDString(id *domain.UserID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	var rawID, rawMatchID, rawRequestedBy, rawStatus string
	var rawAssignedTo sql.NullString
	var rawDecidedAt sql.NullTime
	err := row.Scan(
		&rawID, &rawMatchID, &rawRequestedBy, &rawAssignedTo, &rawStatus,
		&req.Notes, &req.DecisionReason, &req.CreatedAt, &rawDecidedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification request: %w", err)
	}

	if req.ID, err = domain.ParseVerificationRequestID(rawID); err != nil {
		return nil, err
	}
	if req.MatchID, err = domain.ParseMatchID(rawMatchID); err != nil {
		return nil, err
	}
	if req.RequestedBy, err = domain.ParseUserID(rawRequestedBy); err != nil {
		return nil, err
	}
	if rawAssignedTo.Valid {
		assigned, err := domain.ParseUserID(rawAssignedTo.String)
		if err != nil {
			return nil, err
		}
		req.AssignedTo = &assigned
	}
	if rawDecidedAt.Valid {
		decided := rawDecidedAt.Time
		req.DecidedAt = &decided
	}
	req.Status = models.RequestStatus(rawStatus)
	return &req, nil
}

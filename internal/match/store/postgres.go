package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"findmyid/internal/match/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/platform/tx"
)

// Postgres persists matches. The matches_active_pair_idx partial unique
// index backs the one-active-match-per-pair invariant; Create surfaces a
// violation as sentinel.ErrDuplicate so the registry can fold the racing
// write into an update of the surviving row.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const matchColumns = `id, lost_item_id, found_item_id, confidence_score,
	match_criteria, status, rejection_reason, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, match *models.Match) error {
	criteria, err := json.Marshal(match.Criteria)
	if err != nil {
		return fmt.Errorf("marshal match criteria: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		match.ID.String(), match.LostItemID.String(), match.FoundItemID.String(),
		match.ConfidenceScore, criteria, string(match.Status),
		match.RejectionReason, match.CreatedAt, match.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.MatchID) (*models.Match, error) {
	row := s.queryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id.String())
	return scanMatch(row)
}

func (s *Postgres) FindActiveByPair(ctx context.Context, lostID domain.LostItemID, foundID domain.FoundItemID) (*models.Match, error) {
	row := s.queryRow(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE lost_item_id = $1 AND found_item_id = $2
		  AND status IN ($3, $4)`,
		lostID.String(), foundID.String(),
		string(models.StatusPending), string(models.StatusConfirmed))
	return scanMatch(row)
}

func (s *Postgres) Update(ctx context.Context, match *models.Match) error {
	criteria, err := json.Marshal(match.Criteria)
	if err != nil {
		return fmt.Errorf("marshal match criteria: %w", err)
	}
	res, err := s.exec(ctx, `
		UPDATE matches SET
			confidence_score = $2, match_criteria = $3, status = $4,
			rejection_reason = $5, updated_at = $6
		WHERE id = $1`,
		match.ID.String(), match.ConfidenceScore, criteria,
		string(match.Status), match.RejectionReason, match.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Execute(
	ctx context.Context,
	id domain.MatchID,
	validate func(*models.Match) error,
	mutate func(*models.Match),
) (*models.Match, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after commit

	txCtx := tx.WithTx(ctx, dbtx)
	row := dbtx.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id.String())
	match, err := scanMatch(row)
	if err != nil {
		return nil, err
	}

	if err := validate(match); err != nil {
		return nil, err
	}
	mutate(match)

	if err := s.Update(txCtx, match); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return match, nil
}

func (s *Postgres) ListByLostItem(ctx context.Context, lostID domain.LostItemID) ([]*models.Match, error) {
	return s.list(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE lost_item_id = $1
		ORDER BY created_at DESC, id`,
		lostID.String())
}

func (s *Postgres) ListByFoundItem(ctx context.Context, foundID domain.FoundItemID) ([]*models.Match, error) {
	return s.list(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE found_item_id = $1
		ORDER BY created_at DESC, id`,
		foundID.String())
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	return s.list(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE status = $1
		ORDER BY created_at DESC, id`,
		string(status))
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Match, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, match)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var match models.Match
	var rawID, rawLostID, rawFoundID, rawStatus string
	var rawCriteria []byte
	err := row.Scan(
		&rawID, &rawLostID, &rawFoundID, &match.ConfidenceScore,
		&rawCriteria, &rawStatus, &match.RejectionReason,
		&match.CreatedAt, &match.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}

	if match.ID, err = domain.ParseMatchID(rawID); err != nil {
		return nil, err
	}
	if match.LostItemID, err = domain.ParseLostItemID(rawLostID); err != nil {
		return nil, err
	}
	if match.FoundItemID, err = domain.ParseFoundItemID(rawFoundID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawCriteria, &match.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal match criteria: %w", err)
	}
	match.Status = models.MatchStatus(rawStatus)
	return &match, nil
}

package found

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"findmyid/internal/items/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
	"findmyid/pkg/platform/tx"
)

// Postgres persists found items. The OCR columns are written by Create only;
// Update deliberately excludes them so the immutability invariant holds even
// against buggy callers.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const foundColumns = `id, user_id, document_type_id, image_ref, first_name,
	last_name, date_of_birth, document_number, ocr_confidence, found_date,
	found_location, description, contact_phone, contact_email, status,
	created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, item *models.FoundItem) error {
	_, err := s.exec(ctx, `
		INSERT INTO found_items (`+foundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		item.ID.String(), item.UserID.String(), item.DocumentTypeID.String(),
		item.ImageRef, item.FirstName, item.LastName, item.DateOfBirth,
		item.DocumentNumber, item.OCRConfidence, item.FoundDate,
		item.FoundLocation, item.Description, item.ContactPhone,
		item.ContactEmail, string(item.Status), item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert found item: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.FoundItemID) (*models.FoundItem, error) {
	row := s.queryRow(ctx, `SELECT `+foundColumns+` FROM found_items WHERE id = $1`, id.String())
	return scanFoundItem(row)
}

func (s *Postgres) Update(ctx context.Context, item *models.FoundItem) error {
	res, err := s.exec(ctx, `
		UPDATE found_items SET
			found_date = $2, found_location = $3, description = $4,
			contact_phone = $5, contact_email = $6, status = $7, updated_at = $8
		WHERE id = $1`,
		item.ID.String(), item.FoundDate, item.FoundLocation, item.Description,
		item.ContactPhone, item.ContactEmail, string(item.Status), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update found item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update found item: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Execute(
	ctx context.Context,
	id domain.FoundItemID,
	validate func(*models.FoundItem) error,
	mutate func(*models.FoundItem),
) (*models.FoundItem, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after commit

	txCtx := tx.WithTx(ctx, dbtx)
	row := dbtx.QueryRowContext(ctx,
		`SELECT `+foundColumns+` FROM found_items WHERE id = $1 FOR UPDATE`, id.String())
	item, err := scanFoundItem(row)
	if err != nil {
		return nil, err
	}

	if err := validate(item); err != nil {
		return nil, err
	}
	mutate(item)

	if err := s.Update(txCtx, item); err != nil {
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

func (s *Postgres) ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*models.FoundItem, error) {
	return s.list(ctx, `
		SELECT `+foundColumns+` FROM found_items
		WHERE document_type_id = $1 AND status = $2
		ORDER BY created_at DESC`,
		docType.String(), string(models.FoundStatusActive))
}

func (s *Postgres) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.FoundItem, error) {
	return s.list(ctx, `
		SELECT `+foundColumns+` FROM found_items
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID.String())
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.FoundItem, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list found items: %w", err)
	}
	defer rows.Close()

	var out []*models.FoundItem
	for rows.Next() {
		item, err := scanFoundItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
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

func scanFoundItem(row rowScanner) (*models.FoundItem, error) {
	var item models.FoundItem
	var rawID, rawUserID, rawDocTypeID, rawStatus string
	var rawBirth sql.NullTime
	var rawConfidence sql.NullFloat64
	err := row.Scan(
		&rawID, &rawUserID, &rawDocTypeID, &item.ImageRef, &item.FirstName,
		&item.LastName, &rawBirth, &item.DocumentNumber,
		&rawConfidence, &item.FoundDate, &item.FoundLocation,
		&item.Description, &item.ContactPhone, &item.ContactEmail,
		&rawStatus, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan found item: %w", err)
	}
	if rawBirth.Valid {
		birth := rawBirth.Time
		item.DateOfBirth = &birth
	}
	if rawConfidence.Valid {
		confidence := rawConfidence.Float64
		item.OCRConfidence = &confidence
	}

	if item.ID, err = domain.ParseFoundItemID(rawID); err != nil {
		return nil, err
	}
	if item.UserID, err = domain.ParseUserID(rawUserID); err != nil {
		return nil, err
	}
	if item.DocumentTypeID, err = domain.ParseDocumentTypeID(rawDocTypeID); err != nil {
		return nil, err
	}
	item.Status = models.FoundItemStatus(rawStatus)
	return &item, nil
}

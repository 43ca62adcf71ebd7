package lost

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

// Postgres persists lost items. Execute uses SELECT ... FOR UPDATE inside a
// transaction so status transitions are atomic under concurrent writers.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const lostColumns = `id, user_id, document_type_id, first_name, last_name,
	date_of_birth, document_number, lost_date, lost_location, description,
	contact_phone, contact_email, status, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, item *models.LostItem) error {
	_, err := s.exec(ctx, `
		INSERT INTO lost_items (`+lostColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		item.ID.String(), item.UserID.String(), item.DocumentTypeID.String(),
		item.FirstName, item.LastName, item.DateOfBirth, item.DocumentNumber,
		item.LostDate, item.LostLocation, item.Description,
		item.ContactPhone, item.ContactEmail, string(item.Status),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lost item: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.LostItemID) (*models.LostItem, error) {
	row := s.queryRow(ctx, `SELECT `+lostColumns+` FROM lost_items WHERE id = $1`, id.String())
	return scanLostItem(row)
}

func (s *Postgres) Update(ctx context.Context, item *models.LostItem) error {
	res, err := s.exec(ctx, `
		UPDATE lost_items SET
			first_name = $2, last_name = $3, date_of_birth = $4,
			document_number = $5, lost_date = $6, lost_location = $7,
			description = $8, contact_phone = $9, contact_email = $10,
			status = $11, updated_at = $12
		WHERE id = $1`,
		item.ID.String(), item.FirstName, item.LastName, item.DateOfBirth,
		item.DocumentNumber, item.LostDate, item.LostLocation,
		item.Description, item.ContactPhone, item.ContactEmail,
		string(item.Status), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update lost item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lost item: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Execute(
	ctx context.Context,
	id domain.LostItemID,
	validate func(*models.LostItem) error,
	mutate func(*models.LostItem),
) (*models.LostItem, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback() //nolint:errcheck // no-op after commit

	txCtx := tx.WithTx(ctx, dbtx)
	row := dbtx.QueryRowContext(ctx,
		`SELECT `+lostColumns+` FROM lost_items WHERE id = $1 FOR UPDATE`, id.String())
	item, err := scanLostItem(row)
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

func (s *Postgres) ListActiveByDocumentType(ctx context.Context, docType domain.DocumentTypeID) ([]*models.LostItem, error) {
	return s.list(ctx, `
		SELECT `+lostColumns+` FROM lost_items
		WHERE document_type_id = $1 AND status = $2
		ORDER BY created_at DESC`,
		docType.String(), string(models.LostStatusActive))
}

func (s *Postgres) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.LostItem, error) {
	return s.list(ctx, `
		SELECT `+lostColumns+` FROM lost_items
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID.String())
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.LostItem, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lost items: %w", err)
	}
	defer rows.Close()

	var out []*models.LostItem
	for rows.Next() {
		item, err := scanLostItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// exec/query/queryRow route through a context transaction when one is
// present, so Execute-driven writes stay inside the caller's transaction.
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

func scanLostItem(row rowScanner) (*models.LostItem, error) {
	var item models.LostItem
	var rawID, rawUserID, rawDocTypeID, rawStatus string
	err := row.Scan(
		&rawID, &rawUserID, &rawDocTypeID, &item.FirstName, &item.LastName,
		&item.DateOfBirth, &item.DocumentNumber, &item.LostDate,
		&item.LostLocation, &item.Description, &item.ContactPhone,
		&item.ContactEmail, &rawStatus, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lost item: %w", err)
	}

	if item.ID, err = domain.ParseLostItemID(rawID); err != nil {
		return nil, err
	}
	if item.UserID, err = domain.ParseUserID(rawUserID); err != nil {
		return nil, err
	}
	if item.DocumentTypeID, err = domain.ParseDocumentTypeID(rawDocTypeID); err != nil {
		return nil, err
	}
	item.Status = models.LostItemStatus(rawStatus)
	return &item, nil
}

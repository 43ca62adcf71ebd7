package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"findmyid/internal/catalog/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Postgres persists document types.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, dt *models.DocumentType) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_types (id, name, description) VALUES ($1, $2, $3)`,
		dt.ID.String(), dt.Name, dt.Description,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert document type: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.DocumentTypeID) (*models.DocumentType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM document_types WHERE id = $1`, id.String())
	return scanDocumentType(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.DocumentType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description FROM document_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	defer rows.Close()

	var out []*models.DocumentType
	for rows.Next() {
		dt, err := scanDocumentType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocumentType(row rowScanner) (*models.DocumentType, error) {
	var dt models.DocumentType
	var rawID string
	if err := row.Scan(&rawID, &dt.Name, &dt.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document type: %w", err)
	}
	id, err := domain.ParseDocumentTypeID(rawID)
	if err != nil {
		return nil, err
	}
	dt.ID = id
	return &dt, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"findmyid/internal/notification/models"
	"findmyid/pkg/domain"
	"findmyid/pkg/platform/sentinel"
)

// Postgres persists notifications. The unique event_id column is the
// idempotency guard: Create reports sentinel.ErrDuplicate for a redelivered
// event.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const notificationColumns = `id, event_id, user_id, match_id,
	notification_type, title, message, is_read, created_at`

func (s *Postgres) Create(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID.String(), n.EventID, n.UserID.String(), matchIDString(n.MatchID),
		string(n.Type), n.Title, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.NotificationID) (*models.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id.String())
	return scanNotification(row)
}

func (s *Postgres) ListByUser(ctx context.Context, userID domain.UserID) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, id domain.NotificationID, userID domain.UserID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`,
		id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkAllRead(ctx context.Context, userID domain.UserID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE`,
		userID.String())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (s *Postgres) CountUnread(ctx context.Context, userID domain.UserID) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE`,
		userID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func matchIDString(id *domain.MatchID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var rawID, rawUserID, rawType string
	var rawMatchID sql.NullString
	err := row.Scan(
		&rawID, &n.EventID, &rawUserID, &rawMatchID,
		&rawType, &n.Title, &n.Message, &n.Read, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	if n.ID, err = domain.ParseNotificationID(rawID); err != nil {
		return nil, err
	}
	if n.UserID, err = domain.ParseUserID(rawUserID); err != nil {
		return nil, err
	}
	if rawMatchID.Valid {
		matchID, err := domain.ParseMatchID(rawMatchID.String)
		if err != nil {
			return nil, err
		}
		n.MatchID = &matchID
	}
	n.Type = models.Type(rawType)
	return &n, nil
}

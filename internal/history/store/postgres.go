package store

import (
	"context"
	"database/sql"
	"fmt"

	"findmyid/internal/history/models"
	"findmyid/pkg/domain"
)

// Postgres appends to the history_events table. The trail is insert-only;
// there is no update or delete path.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const eventColumns = `id, occurred_at, actor_id, action, description, match_id, request_id`

func (s *Postgres) Append(ctx context.Context, event models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_events (occurred_at, actor_id, action, description, match_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.OccurredAt, actorIDString(event.ActorID), string(event.Action),
		event.Description, matchIDString(event.MatchID), event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append history event: %w", err)
	}
	return nil
}

func (s *Postgres) ListByActor(ctx context.Context, actorID domain.UserID) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM history_events
		WHERE actor_id = $1
		ORDER BY occurred_at DESC, id DESC`,
		actorID.String())
	if err != nil {
		return nil, fmt.Errorf("list history by actor: %w", err)
	}
	return collectEvents(rows)
}

func (s *Postgres) ListByMatch(ctx context.Context, matchID domain.MatchID) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM history_events
		WHERE match_id = $1
		ORDER BY occurred_at DESC, id DESC`,
		matchID.String())
	if err != nil {
		return nil, fmt.Errorf("list history by match: %w", err)
	}
	return collectEvents(rows)
}

func (s *Postgres) ListRecent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM history_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list recent history: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var event models.Event
		var rawAction string
		var rawActorID, rawMatchID sql.NullString
		err := rows.Scan(
			&event.ID, &event.OccurredAt, &rawActorID, &rawAction,
			&event.Description, &rawMatchID, &event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		if rawActorID.Valid {
			if event.ActorID, err = domain.ParseUserID(rawActorID.String); err != nil {
				return nil, err
			}
		}
		if rawMatchID.Valid {
			matchID, err := domain.ParseMatchID(rawMatchID.String)
			if err != nil {
				return nil, err
			}
			event.MatchID = &matchID
		}
		event.Action = models.Action(rawAction)
		out = append(out, event)
	}
	return out, rows.Err()
}

func actorIDString(id domain.UserID) any {
	if id == (domain.UserID{}) {
		return nil
	}
	return id.String()
}

func matchIDString(id *domain.MatchID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

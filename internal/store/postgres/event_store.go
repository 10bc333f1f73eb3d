package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Each event is
// stored whole as JSONB; the typed tables are maintained by their own stores.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts evt. Replays of the same event ID are silently skipped.
func (s *EventStore) Append(ctx context.Context, evt domain.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("postgres: marshal event %s: %w", evt.ID, err)
	}

	const query = `
		INSERT INTO auction_events (id, session_id, seq, type, payload, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		evt.ID, evt.SessionID, int64(evt.Seq), string(evt.Type), payload, evt.At,
	); err != nil {
		return fmt.Errorf("postgres: append event %s: %w", evt.ID, err)
	}
	return nil
}

// List returns up to limit events of a session after afterSeq, in commit
// order. A non-positive limit returns them all.
func (s *EventStore) List(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	query := `SELECT payload FROM auction_events WHERE session_id = $1 AND seq > $2 ORDER BY seq ASC`
	args := []any{sessionID, int64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		var evt domain.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

// numeric scans a NUMERIC column selected as text.
func numeric(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: parse numeric %q: %w", raw, err)
	}
	return d, nil
}

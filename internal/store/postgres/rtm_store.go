package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// RTMStore implements domain.RTMStore using PostgreSQL.
type RTMStore struct {
	pool *pgxpool.Pool
}

// NewRTMStore creates a new RTMStore backed by the given connection pool.
func NewRTMStore(pool *pgxpool.Pool) *RTMStore {
	return &RTMStore{pool: pool}
}

// Upsert writes an attempt when its window opens and again when it closes.
// A closed attempt is never reopened by a late replay of the open event.
func (s *RTMStore) Upsert(ctx context.Context, sessionID string, a domain.RTMAttempt) error {
	const query = `
		INSERT INTO rtm_attempts (
			id, session_id, lot_id, previous_team_id, competing_team_id,
			amount, outcome, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			outcome   = COALESCE(NULLIF(rtm_attempts.outcome, ''), EXCLUDED.outcome),
			closed_at = COALESCE(rtm_attempts.closed_at, EXCLUDED.closed_at)`
	if _, err := s.pool.Exec(ctx, query,
		a.ID, sessionID, a.LotID, a.PreviousTeamID, a.CompetingTeamID,
		a.Amount.String(), string(a.Outcome), a.OpenedAt, a.ClosedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert rtm attempt %s: %w", a.ID, err)
	}
	return nil
}

// ListBySession returns the attempts of a session in the order they opened.
func (s *RTMStore) ListBySession(ctx context.Context, sessionID string) ([]domain.RTMAttempt, error) {
	const query = `
		SELECT id, lot_id, previous_team_id, competing_team_id, amount::text,
		       outcome, opened_at, closed_at
		FROM rtm_attempts WHERE session_id = $1 ORDER BY opened_at ASC`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rtm attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.RTMAttempt
	for rows.Next() {
		var (
			a       domain.RTMAttempt
			amount  string
			outcome string
		)
		if err := rows.Scan(&a.ID, &a.LotID, &a.PreviousTeamID, &a.CompetingTeamID,
			&amount, &outcome, &a.OpenedAt, &a.ClosedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan rtm attempt: %w", err)
		}
		if a.Amount, err = numeric(amount); err != nil {
			return nil, err
		}
		a.Outcome = domain.RTMOutcome(outcome)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rtm attempts rows: %w", err)
	}
	return out, nil
}

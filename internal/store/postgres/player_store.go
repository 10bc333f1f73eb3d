package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// PlayerStore implements domain.PlayerStore using PostgreSQL.
type PlayerStore struct {
	pool *pgxpool.Pool
}

// NewPlayerStore creates a new PlayerStore backed by the given connection pool.
func NewPlayerStore(pool *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{pool: pool}
}

const upsertPlayerSQL = `
	INSERT INTO players (
		id, name, category, country, base_price, status,
		team_id, sold_price, acquisition, previous_team_id, updated_at
	) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8::numeric, $9, $10, NOW())
	ON CONFLICT (id) DO UPDATE SET
		name             = EXCLUDED.name,
		category         = EXCLUDED.category,
		country          = EXCLUDED.country,
		base_price       = EXCLUDED.base_price,
		status           = EXCLUDED.status,
		team_id          = EXCLUDED.team_id,
		sold_price       = EXCLUDED.sold_price,
		acquisition      = EXCLUDED.acquisition,
		previous_team_id = EXCLUDED.previous_team_id,
		updated_at       = NOW()`

func playerArgs(p domain.Player) []any {
	return []any{
		p.ID, p.Name, string(p.Category), string(p.Country), p.BasePrice.String(), string(p.Status),
		p.TeamID, p.SoldPrice.String(), string(p.Acquisition), p.PreviousTeamID,
	}
}

// Upsert inserts or replaces the row for p.
func (s *PlayerStore) Upsert(ctx context.Context, p domain.Player) error {
	if _, err := s.pool.Exec(ctx, upsertPlayerSQL, playerArgs(p)...); err != nil {
		return fmt.Errorf("postgres: upsert player %s: %w", p.ID, err)
	}
	return nil
}

// UpsertBatch writes many players in one round trip.
func (s *PlayerStore) UpsertBatch(ctx context.Context, players []domain.Player) error {
	if len(players) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(upsertPlayerSQL, playerArgs(p)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range players {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert player batch item %d (%s): %w", i, players[i].ID, err)
		}
	}
	return nil
}

// DeleteNotIn removes player rows whose IDs are not in keep. A new auction
// drops the previous pool this way.
func (s *PlayerStore) DeleteNotIn(ctx context.Context, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM players WHERE NOT (id = ANY($1))`, keep)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete stale players: %w", err)
	}
	return tag.RowsAffected(), nil
}

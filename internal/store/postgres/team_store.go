package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// TeamStore implements domain.TeamStore using PostgreSQL.
type TeamStore struct {
	pool *pgxpool.Pool
}

// NewTeamStore creates a new TeamStore backed by the given connection pool.
func NewTeamStore(pool *pgxpool.Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

const upsertTeamSQL = `
	INSERT INTO teams (
		id, code, name, purse, starting_purse, squad_size, overseas_count,
		category_counts, rtm_cards, rtm_enabled, max_squad_override,
		max_overseas_override, updated_at
	) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12, NOW())
	ON CONFLICT (id) DO UPDATE SET
		code                  = EXCLUDED.code,
		name                  = EXCLUDED.name,
		purse                 = EXCLUDED.purse,
		starting_purse        = EXCLUDED.starting_purse,
		squad_size            = EXCLUDED.squad_size,
		overseas_count        = EXCLUDED.overseas_count,
		category_counts       = EXCLUDED.category_counts,
		rtm_cards             = EXCLUDED.rtm_cards,
		rtm_enabled           = EXCLUDED.rtm_enabled,
		max_squad_override    = EXCLUDED.max_squad_override,
		max_overseas_override = EXCLUDED.max_overseas_override,
		updated_at            = NOW()`

func teamArgs(t domain.Team) ([]any, error) {
	counts := t.CategoryCounts
	if counts == nil {
		counts = map[domain.Category]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal category counts for %s: %w", t.ID, err)
	}
	return []any{
		t.ID, t.Code, t.Name, t.Purse.String(), t.StartingPurse.String(), t.SquadSize, t.OverseasCount,
		countsJSON, t.RTMCards, t.RTMEnabled, t.MaxSquadOverride, t.MaxOverseasOverride,
	}, nil
}

// Upsert writes the ledger snapshot of one team.
func (s *TeamStore) Upsert(ctx context.Context, t domain.Team) error {
	args, err := teamArgs(t)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertTeamSQL, args...); err != nil {
		return fmt.Errorf("postgres: upsert team %s: %w", t.ID, err)
	}
	return nil
}

// UpsertBatch writes the snapshot of several teams in one round trip.
func (s *TeamStore) UpsertBatch(ctx context.Context, teams []domain.Team) error {
	if len(teams) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range teams {
		args, err := teamArgs(t)
		if err != nil {
			return err
		}
		batch.Queue(upsertTeamSQL, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range teams {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert team batch item %d (%s): %w", i, teams[i].ID, err)
		}
	}
	return nil
}

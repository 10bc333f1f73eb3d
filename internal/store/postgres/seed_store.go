package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// SeedStore reads the validated import tables written by the import
// collaborator. It implements domain.SeedSource.
type SeedStore struct {
	pool *pgxpool.Pool
}

// NewSeedStore creates a new SeedStore backed by the given connection pool.
func NewSeedStore(pool *pgxpool.Pool) *SeedStore {
	return &SeedStore{pool: pool}
}

// LoadSeed returns every team and seeded player. Rows with a retained_by team
// code become retentions; the rest go to the pool.
func (s *SeedStore) LoadSeed(ctx context.Context) (domain.Seed, error) {
	var seed domain.Seed

	teamRows, err := s.pool.Query(ctx, `SELECT id, code, name FROM teams ORDER BY code`)
	if err != nil {
		return seed, fmt.Errorf("postgres: load seed teams: %w", err)
	}
	for teamRows.Next() {
		var t domain.TeamRecord
		if err := teamRows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			teamRows.Close()
			return seed, fmt.Errorf("postgres: scan seed team: %w", err)
		}
		seed.Teams = append(seed.Teams, t)
	}
	teamRows.Close()
	if err := teamRows.Err(); err != nil {
		return seed, fmt.Errorf("postgres: load seed teams rows: %w", err)
	}

	const playersQuery = `
		SELECT id, name, category, country, base_price::text, previous_team_code,
		       retained_by, COALESCE(retained_price, 0)::text
		FROM players_seed ORDER BY created_at, id`
	rows, err := s.pool.Query(ctx, playersQuery)
	if err != nil {
		return seed, fmt.Errorf("postgres: load seed players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec                    domain.PlayerRecord
			category, country      string
			basePrice, retainedRaw string
			retainedBy             string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &category, &country, &basePrice,
			&rec.PreviousTeamCode, &retainedBy, &retainedRaw); err != nil {
			return seed, fmt.Errorf("postgres: scan seed player: %w", err)
		}
		rec.Category = domain.Category(category)
		rec.Country = domain.Country(country)
		if rec.BasePrice, err = numeric(basePrice); err != nil {
			return seed, err
		}

		if retainedBy == "" {
			seed.Players = append(seed.Players, rec)
			continue
		}
		price, err := numeric(retainedRaw)
		if err != nil {
			return seed, err
		}
		seed.Retained = append(seed.Retained, domain.RetainedRecord{
			PlayerRecord:  rec,
			TeamCode:      retainedBy,
			RetainedPrice: price,
		})
	}
	if err := rows.Err(); err != nil {
		return seed, fmt.Errorf("postgres: load seed players rows: %w", err)
	}
	return seed, nil
}

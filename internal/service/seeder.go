package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

// FileSeed reads a domain.Seed from a JSON file. It is the seed source of
// standalone mode.
type FileSeed struct {
	Path string
}

// LoadSeed decodes the file. Unknown fields are rejected to catch typos in
// hand-written seed files.
func (f FileSeed) LoadSeed(_ context.Context) (domain.Seed, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return domain.Seed{}, fmt.Errorf("seed: open %s: %w", f.Path, err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	var seed domain.Seed
	if err := dec.Decode(&seed); err != nil {
		return domain.Seed{}, fmt.Errorf("seed: decode %s: %w", f.Path, err)
	}
	return seed, nil
}

// Seeder primes the engine from a seed source at startup.
type Seeder struct {
	engine *auction.Engine
	logger *slog.Logger
}

// NewSeeder creates a Seeder for engine.
func NewSeeder(engine *auction.Engine, logger *slog.Logger) *Seeder {
	return &Seeder{engine: engine, logger: logger.With(slog.String("component", "seeder"))}
}

// Seed loads src into the engine. An empty source is not an error: the
// operator can import later.
func (s *Seeder) Seed(ctx context.Context, src domain.SeedSource) (auction.ImportResult, error) {
	seed, err := src.LoadSeed(ctx)
	if err != nil {
		return auction.ImportResult{}, fmt.Errorf("seeder: load: %w", err)
	}
	if len(seed.Teams) == 0 && len(seed.Players) == 0 && len(seed.Retained) == 0 {
		s.logger.InfoContext(ctx, "seed source is empty, waiting for an import")
		return auction.ImportResult{}, nil
	}
	res, err := s.engine.Import(seed)
	if err != nil {
		return res, fmt.Errorf("seeder: import: %w", err)
	}
	s.logger.InfoContext(ctx, "seed imported",
		slog.Int("teams", res.Teams),
		slog.Int("players", res.Players),
		slog.Int("retained", res.Retained),
	)
	return res, nil
}

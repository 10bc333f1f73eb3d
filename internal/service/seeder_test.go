package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

const seedJSON = `{
  "teams": [{"id": "csk", "code": "CSK", "name": "Chennai"}, {"id": "mi", "code": "MI", "name": "Mumbai"}],
  "players": [
    {"id": "p1", "name": "Opener", "category": "batter", "country": "domestic", "base_price": "2.00", "previous_team_code": "CSK"},
    {"id": "p2", "name": "Seamer", "category": "bowler", "country": "overseas", "base_price": "1.50"}
  ],
  "retained": [
    {"id": "r1", "name": "Captain", "category": "allrounder", "base_price": "2.00", "team_code": "MI", "retained_price": "16.00"}
  ]
}`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileSeed_LoadSeed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		players int
	}{
		{name: "valid", body: seedJSON, players: 2},
		{name: "empty object", body: `{}`},
		{name: "unknown field", body: `{"teams": [], "franchises": []}`, wantErr: true},
		{name: "malformed", body: `{"teams": [`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := FileSeed{Path: writeSeed(t, tt.body)}.LoadSeed(context.Background())
			if tt.wantErr {
				check.NotNil(t, err)
				return
			}
			assert.NoError(t, err)
			check.Equal(t, tt.players, len(seed.Players))
		})
	}

	_, err := FileSeed{Path: filepath.Join(t.TempDir(), "missing.json")}.LoadSeed(context.Background())
	check.True(t, errors.Is(err, os.ErrNotExist))
}

type staticSeed struct {
	seed domain.Seed
	err  error
}

func (s staticSeed) LoadSeed(context.Context) (domain.Seed, error) { return s.seed, s.err }

func TestSeeder_Seed(t *testing.T) {
	ctx := context.Background()

	t.Run("imports file", func(t *testing.T) {
		engine := newEngine(t)
		res, err := NewSeeder(engine, quietLogger()).Seed(ctx, FileSeed{Path: writeSeed(t, seedJSON)})
		assert.NoError(t, err)
		check.Equal(t, 2, res.Teams)
		check.Equal(t, 2, res.Players)
		check.Equal(t, 1, res.Retained)

		mi, ok := engine.Team("mi")
		assert.True(t, ok)
		check.Equal(t, "84.00", mi.Purse.StringFixed(2))
		check.Equal(t, 1, mi.SquadSize)
	})

	t.Run("empty source waits", func(t *testing.T) {
		engine := newEngine(t)
		res, err := NewSeeder(engine, quietLogger()).Seed(ctx, staticSeed{})
		assert.NoError(t, err)
		check.Equal(t, 0, res.Players)
		check.Equal(t, 0, len(engine.Teams()))
	})

	t.Run("load error", func(t *testing.T) {
		_, err := NewSeeder(newEngine(t), quietLogger()).Seed(ctx, staticSeed{err: errDown})
		check.True(t, errors.Is(err, errDown))
	})

	t.Run("rejected import", func(t *testing.T) {
		seed := testSeed()
		seed.Players[0].BasePrice = dec("0")
		_, err := NewSeeder(newEngine(t), quietLogger()).Seed(ctx, staticSeed{seed: seed})
		check.True(t, errors.Is(err, domain.ErrInvalidArgument))
	})
}

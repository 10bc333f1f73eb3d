package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testSeed() domain.Seed {
	return domain.Seed{
		Teams: []domain.TeamRecord{
			{ID: "csk", Code: "CSK", Name: "Chennai"},
			{ID: "mi", Code: "MI", Name: "Mumbai"},
		},
		Players: []domain.PlayerRecord{
			{ID: "p1", Name: "Opener", Category: domain.CategoryBatter, Country: domain.CountryDomestic, BasePrice: dec("2.00"), PreviousTeamCode: "CSK"},
			{ID: "p2", Name: "Seamer", Category: domain.CategoryBowler, Country: domain.CountryDomestic, BasePrice: dec("0.50")},
		},
	}
}

func newEngine(t *testing.T) *auction.Engine {
	t.Helper()
	cfg := auction.DefaultConfig()
	cfg.Seed = 7
	cfg.AutoAdvance = false
	e := auction.New(cfg, quietLogger())
	t.Cleanup(e.Close)
	return e
}

var (
	admin      = domain.Actor{Subject: "root", Role: domain.RoleAdmin}
	auctioneer = domain.Actor{Subject: "hammer", Role: domain.RoleAuctioneer}
	chennai    = domain.Actor{Subject: "csk-owner", Role: domain.RoleTeam, TeamID: "csk"}
	mumbai     = domain.Actor{Subject: "mi-owner", Role: domain.RoleTeam, TeamID: "mi"}
)

// memAudit is an in-memory domain.AuditStore.
type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *memAudit) Log(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...), nil
}

func (m *memAudit) commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Command+":"+e.Outcome)
	}
	return out
}

// startLot imports the seed and opens the first lot.
func startLot(t *testing.T, svc *AuctionService) domain.Player {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Import(ctx, admin, testSeed())
	assert.NoError(t, err)
	_, err = svc.GenerateSets(ctx, auctioneer, 0)
	assert.NoError(t, err)
	_, err = svc.PickSet(ctx, auctioneer)
	assert.NoError(t, err)
	p, err := svc.DrawLot(ctx, auctioneer)
	assert.NoError(t, err)
	return p
}

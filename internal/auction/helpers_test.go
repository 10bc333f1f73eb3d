package auction

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward and runs every timer that came due, outside
// the clock's lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testSeed() domain.Seed {
	return domain.Seed{
		Teams: []domain.TeamRecord{
			{ID: "csk", Code: "CSK", Name: "Chennai"},
			{ID: "mi", Code: "MI", Name: "Mumbai"},
			{ID: "rcb", Code: "RCB", Name: "Bengaluru"},
		},
		Players: []domain.PlayerRecord{
			{ID: "p1", Name: "Opener", Category: domain.CategoryBatter, Country: domain.CountryDomestic, BasePrice: dec("2.00"), PreviousTeamCode: "CSK"},
			{ID: "p2", Name: "Seamer", Category: domain.CategoryBowler, Country: domain.CountryDomestic, BasePrice: dec("0.50")},
			{ID: "p3", Name: "Keeper", Category: domain.CategoryWicketkeeper, Country: domain.CountryOverseas, BasePrice: dec("1.00")},
			{ID: "p4", Name: "Spinner", Category: domain.CategoryBowler, Country: domain.CountryOverseas, BasePrice: dec("0.75"), PreviousTeamCode: "MI"},
			{ID: "p5", Name: "Finisher", Category: domain.CategoryAllrounder, Country: domain.CountryDomestic, BasePrice: dec("5.00")},
		},
	}
}

func testConfig(clk Clock) Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Clock = clk
	cfg.AutoAdvance = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	cfg := testConfig(clk)
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(e.Close)
	_, err := e.Import(testSeed())
	assert.NoError(t, err)
	return e, clk
}

// openLot puts the given player on the block by queueing it in the
// current set before drawing.
func openLot(t *testing.T, e *Engine, playerID string) {
	t.Helper()
	if e.Session().CurrentSetID == "" {
		_, err := e.GenerateSets(10)
		assert.NoError(t, err)
		_, err = e.PickSet()
		assert.NoError(t, err)
	}
	e.lock()
	e.registry.set(e.session.CurrentSetID).queued = playerID
	e.unlock()
	p, err := e.DrawLot()
	assert.NoError(t, err)
	assert.Equal(t, playerID, p.ID)
}

// bid places the next valid bid for team on the open lot.
func bid(t *testing.T, e *Engine, teamID string) domain.BidRecord {
	t.Helper()
	snap := e.Snapshot()
	rec, err := e.PlaceBid(domain.BidRequest{
		LotID:           snap.Session.CurrentLotID,
		TeamID:          teamID,
		Amount:          snap.NextBid,
		ExpectedCounter: snap.Session.BidCounter,
	})
	assert.NoError(t, err)
	return rec
}

func mustTeam(t *testing.T, e *Engine, id string) domain.Team {
	t.Helper()
	team, ok := e.Team(id)
	assert.True(t, ok)
	return team
}

func mustPlayer(t *testing.T, e *Engine, id string) domain.Player {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.registry.Player(id)
	assert.True(t, ok)
	return p
}

package auction

import (
	"errors"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger(DefaultConfig().Rules)
	_, err := l.AddTeam(domain.TeamRecord{ID: "mi", Code: "MI", Name: "Mumbai"})
	assert.NoError(t, err)
	_, err = l.AddTeam(domain.TeamRecord{ID: "dc", Code: "DC"})
	assert.NoError(t, err)
	return l
}

func TestLedger_CommitSaleAndUndo(t *testing.T) {
	l := newTestLedger(t)
	p := domain.Player{ID: "p1", Category: domain.CategoryAllrounder, Country: domain.CountryOverseas}

	team, err := l.CommitSale(p, "mi", dec("7.25"), domain.AcquisitionBid)
	assert.NoError(t, err)
	check.Equal(t, "92.75", team.Purse.StringFixed(2))
	check.Equal(t, 1, team.SquadSize)
	check.Equal(t, 1, team.OverseasCount)
	check.Equal(t, 1, team.CategoryCounts[domain.CategoryAllrounder])

	d, ok := l.LastDelta()
	assert.True(t, ok)
	check.Equal(t, "p1", d.PlayerID)

	d, team, err = l.Undo()
	assert.NoError(t, err)
	check.Equal(t, "7.25", d.Price.StringFixed(2))
	check.Equal(t, "100.00", team.Purse.StringFixed(2))
	check.Equal(t, 0, team.SquadSize)
	check.Equal(t, 0, team.OverseasCount)
	check.Equal(t, 0, len(team.CategoryCounts))

	_, _, err = l.Undo()
	check.True(t, errors.Is(err, domain.ErrNothingToUndo))
}

func TestLedger_UndoRunsOnceUnderRace(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.CommitSale(domain.Player{ID: "p1", Category: domain.CategoryBowler}, "mi", dec("3.00"), domain.AcquisitionRTM)
	assert.NoError(t, err)
	check.Equal(t, 1, mustLedgerTeam(t, l, "mi").RTMCards)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := l.Undo(); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	check.Equal(t, 1, ok)
	mi := mustLedgerTeam(t, l, "mi")
	check.Equal(t, "100.00", mi.Purse.StringFixed(2))
	check.Equal(t, 2, mi.RTMCards)
}

func TestLedger_Checks(t *testing.T) {
	tests := []struct {
		name  string
		cfg   domain.TeamConfig
		price string
		want  error
	}{
		{name: "purse exactly enough", cfg: domain.TeamConfig{StartingPurse: ptr(dec("5.00"))}, price: "5.00"},
		{name: "purse short", cfg: domain.TeamConfig{StartingPurse: ptr(dec("5.00"))}, price: "5.05", want: domain.ErrInsufficientPurse},
		{name: "squad full", cfg: domain.TeamConfig{MaxSquadOverride: ptr(1)}, price: "1.00", want: domain.ErrCapExceeded},
		{name: "overseas full", cfg: domain.TeamConfig{MaxOverseasOverride: ptr(1)}, price: "1.00", want: domain.ErrCapExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			_, err := l.CommitSale(domain.Player{ID: "seed", Category: domain.CategoryBatter, Country: domain.CountryOverseas}, "dc", dec("0.00"), domain.AcquisitionBid)
			assert.NoError(t, err)
			_, err = l.Configure("dc", tt.cfg)
			assert.NoError(t, err)

			before := mustLedgerTeam(t, l, "dc")
			_, err = l.CommitSale(domain.Player{ID: "p", Category: domain.CategoryBatter, Country: domain.CountryOverseas}, "dc", dec(tt.price), domain.AcquisitionBid)
			if tt.want == nil {
				check.NoError(t, err)
				return
			}
			check.True(t, errors.Is(err, tt.want))
			after := mustLedgerTeam(t, l, "dc")
			check.Equal(t, before.SquadSize, after.SquadSize)
			check.True(t, before.Purse.Equal(after.Purse))
		})
	}
}

func TestLedger_ConfigureKeepsSpend(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.CommitRetention(domain.Player{ID: "r", Category: domain.CategoryBatter}, "mi", dec("12.00"))
	assert.NoError(t, err)
	_, ok := l.LastDelta()
	check.False(t, ok)

	team, err := l.Configure("mi", domain.TeamConfig{StartingPurse: ptr(dec("90.00"))})
	assert.NoError(t, err)
	check.Equal(t, "78.00", team.Purse.StringFixed(2))

	_, err = l.Configure("mi", domain.TeamConfig{StartingPurse: ptr(dec("10.00"))})
	check.True(t, errors.Is(err, domain.ErrInvalidArgument))
	_, err = l.Configure("mi", domain.TeamConfig{MaxSquadOverride: ptr(0)})
	check.NoError(t, err)
	_, err = l.Configure("zz", domain.TeamConfig{})
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLedger_AddTeamRejectsDuplicateCode(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.AddTeam(domain.TeamRecord{Code: "MI"})
	check.True(t, errors.Is(err, domain.ErrAlreadyExists))
	team, ok := l.TeamByCode("DC")
	assert.True(t, ok)
	check.Equal(t, "DC", team.Name)
	check.Equal(t, 2, len(l.Teams()))
}

func mustLedgerTeam(t *testing.T, l *Ledger, id string) domain.Team {
	t.Helper()
	team, ok := l.Team(id)
	assert.True(t, ok)
	return team
}

func ptr[T any](v T) *T { return &v }

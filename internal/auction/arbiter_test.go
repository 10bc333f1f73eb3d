package auction

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

func TestPlaceBid_BracketScenario(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	openLot(t, e, "p1")

	// Opening bid is the base price itself.
	first := bid(t, e, "mi")
	check.Equal(t, "2.00", first.Amount.StringFixed(2))
	check.Equal(t, int64(1), first.Counter)

	_, err := e.PlaceBid(domain.BidRequest{LotID: "p1", TeamID: "rcb", Amount: dec("2.10"), ExpectedCounter: 1})
	check.True(t, errors.Is(err, domain.ErrInvalidAmount))
	var bidErr *BidError
	assert.True(t, errors.As(err, &bidErr))
	check.Equal(t, "2.20", bidErr.Expected.StringFixed(2))
	check.Equal(t, int64(1), bidErr.Counter)

	rec, err := e.PlaceBid(domain.BidRequest{LotID: "p1", TeamID: "rcb", Amount: dec("2.20"), ExpectedCounter: 1})
	assert.NoError(t, err)
	check.Equal(t, int64(2), rec.Counter)

	snap := e.Snapshot()
	check.Equal(t, "rcb", snap.Session.HighestBidderID)
	check.Equal(t, "2.20", snap.Session.CurrentBid.StringFixed(2))
	check.Equal(t, "2.40", snap.NextBid.StringFixed(2))
	check.Equal(t, 2, len(snap.Bids))
	check.Equal(t, "rcb", snap.Bids[0].TeamID)
}

func TestPlaceBid_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, e *Engine) domain.BidRequest
		want    error
	}{
		{
			name: "paused",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				assert.NoError(t, e.Pause())
				return domain.BidRequest{LotID: "p2", TeamID: "mi", Amount: dec("0.50")}
			},
			want: domain.ErrPaused,
		},
		{
			name: "wrong lot",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				return domain.BidRequest{LotID: "p3", TeamID: "mi", Amount: dec("1.00")}
			},
			want: domain.ErrNotBiddable,
		},
		{
			name: "opted out",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				assert.NoError(t, e.SetOptOut("p2", "mi", true))
				return domain.BidRequest{LotID: "p2", TeamID: "mi", Amount: dec("0.50")}
			},
			want: domain.ErrSelfOptedOut,
		},
		{
			name: "already highest",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				bid(t, e, "mi")
				return domain.BidRequest{LotID: "p2", TeamID: "mi", Amount: dec("0.55"), ExpectedCounter: 1}
			},
			want: domain.ErrAlreadyHighest,
		},
		{
			name: "stale counter",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				bid(t, e, "mi")
				return domain.BidRequest{LotID: "p2", TeamID: "rcb", Amount: dec("0.55"), ExpectedCounter: 0}
			},
			want: domain.ErrStaleBid,
		},
		{
			name: "below base price",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				return domain.BidRequest{LotID: "p2", TeamID: "rcb", Amount: dec("0.45")}
			},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "unknown team",
			prepare: func(t *testing.T, e *Engine) domain.BidRequest {
				return domain.BidRequest{LotID: "p2", TeamID: "kkr", Amount: dec("0.50")}
			},
			want: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, nil)
			openLot(t, e, "p2")
			req := tt.prepare(t, e)
			before := e.Session()

			_, err := e.PlaceBid(req)
			check.True(t, errors.Is(err, tt.want))
			var bidErr *BidError
			check.True(t, errors.As(err, &bidErr))

			after := e.Session()
			check.Equal(t, before.BidCounter, after.BidCounter)
			check.Equal(t, before.HighestBidderID, after.HighestBidderID)
		})
	}
}

func TestPlaceBid_ClearsEscalation(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	openLot(t, e, "p2")
	bid(t, e, "mi")
	assert.NoError(t, e.GoingOnce())
	assert.NoError(t, e.GoingTwice())
	check.Equal(t, domain.LotGoingTwice, e.Session().Phase)

	bid(t, e, "rcb")
	s := e.Session()
	check.Equal(t, domain.LotRevealed, s.Phase)
	check.False(t, s.GoingOnce)
	check.False(t, s.GoingTwice)

	err := e.GoingTwice()
	check.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestPlaceBid_ConcurrentOneWinnerPerIncrement(t *testing.T) {
	seed := testSeed()
	seed.Teams = nil
	for i := range 12 {
		code := fmt.Sprintf("T%02d", i)
		seed.Teams = append(seed.Teams, domain.TeamRecord{ID: code, Code: code})
	}
	seed.Players[0].PreviousTeamCode = ""
	seed.Players[3].PreviousTeamCode = ""

	e := New(testConfig(newFakeClock()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(e.Close)
	_, err := e.Import(seed)
	assert.NoError(t, err)
	openLot(t, e, "p3")

	const rounds = 8
	for round := range rounds {
		snap := e.Snapshot()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			other   []error
		)
		start := make(chan struct{})
		for _, team := range seed.Teams {
			wg.Add(1)
			go func(teamID string) {
				defer wg.Done()
				<-start
				_, err := e.PlaceBid(domain.BidRequest{
					LotID:           snap.Session.CurrentLotID,
					TeamID:          teamID,
					Amount:          snap.NextBid,
					ExpectedCounter: snap.Session.BidCounter,
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, teamID)
				case errors.Is(err, domain.ErrStaleBid), errors.Is(err, domain.ErrAlreadyHighest):
				default:
					other = append(other, err)
				}
			}(team.ID)
		}
		close(start)
		wg.Wait()

		check.Equal(t, 1, len(winners))
		check.Equal(t, 0, len(other))
		check.Equal(t, int64(round+1), e.Session().BidCounter)
	}

	bids := e.Bids("p3")
	check.Equal(t, rounds, len(bids))
	for i := 1; i < len(bids); i++ {
		want := domain.NextBid(bids[i-1].Amount, dec("1.00"))
		check.True(t, bids[i].Amount.Equal(want))
		check.NotEqual(t, bids[i-1].TeamID, bids[i].TeamID)
	}
}

func TestSetOptOut(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	openLot(t, e, "p2")

	assert.NoError(t, e.SetOptOut("p2", "mi", true))
	check.Equal(t, []string{"mi"}, e.Snapshot().OptedOut)

	// Repeating the same toggle is a no-op.
	assert.NoError(t, e.SetOptOut("p2", "mi", true))
	assert.NoError(t, e.SetOptOut("p2", "mi", false))
	check.Equal(t, 0, len(e.Snapshot().OptedOut))
	bid(t, e, "mi")

	err := e.SetOptOut("p2", "mi", true)
	check.True(t, errors.Is(err, domain.ErrAlreadyHighest))

	err = e.SetOptOut("p3", "rcb", true)
	check.True(t, errors.Is(err, domain.ErrNotBiddable))
}

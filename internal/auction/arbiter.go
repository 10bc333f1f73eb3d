package auction

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// BidError is returned for every rejected bid. Expected and Counter are the
// values a client must submit to retry.
type BidError struct {
	Err      error
	Expected decimal.Decimal
	Counter  int64
}

func (e *BidError) Error() string {
	return fmt.Sprintf("auction: bid rejected: %v (expected %s at counter %d)", e.Err, e.Expected.StringFixed(2), e.Counter)
}

func (e *BidError) Unwrap() error { return e.Err }

// PlaceBid accepts a bid only if it is exactly the next bracket amount and
// the client saw the live bid counter. Of several bids raced on the same
// counter exactly one wins; the rest get ErrStaleBid.
func (e *Engine) PlaceBid(req domain.BidRequest) (domain.BidRecord, error) {
	e.lotMu.Lock()
	defer e.lotMu.Unlock()

	s := &e.session
	reject := func(err error) error {
		e.logger.Debug("bid rejected",
			"lot_id", req.LotID, "team_id", req.TeamID,
			"amount", req.Amount.StringFixed(2), "error", err)
		return &BidError{Err: err, Expected: e.nextBid(), Counter: s.BidCounter}
	}

	switch {
	case req.TeamID == "":
		return domain.BidRecord{}, reject(domain.ErrInvalidArgument)
	case s.Status == domain.SessionPaused:
		return domain.BidRecord{}, reject(domain.ErrPaused)
	case s.Status != domain.SessionActive || !s.Phase.Biddable() || req.LotID != s.CurrentLotID:
		return domain.BidRecord{}, reject(domain.ErrNotBiddable)
	case e.optOuts[req.TeamID]:
		return domain.BidRecord{}, reject(domain.ErrSelfOptedOut)
	case s.HighestBidderID == req.TeamID:
		return domain.BidRecord{}, reject(domain.ErrAlreadyHighest)
	case req.ExpectedCounter != s.BidCounter:
		return domain.BidRecord{}, reject(domain.ErrStaleBid)
	case !req.Amount.Equal(e.nextBid()):
		return domain.BidRecord{}, reject(domain.ErrInvalidAmount)
	}
	if _, ok := e.ledger.Team(req.TeamID); !ok {
		return domain.BidRecord{}, reject(domain.ErrNotFound)
	}

	s.BidCounter++
	s.CurrentBid = req.Amount
	s.HighestBidderID = req.TeamID
	s.GoingOnce, s.GoingTwice = false, false
	s.Phase = domain.LotRevealed

	rec := domain.BidRecord{
		ID:       uuid.NewString(),
		LotID:    req.LotID,
		TeamID:   req.TeamID,
		Amount:   req.Amount,
		Counter:  s.BidCounter,
		PlacedAt: e.now(),
		Valid:    true,
	}
	e.bids = append(e.bids, rec)
	e.emit(domain.EventBidPlaced, func(evt *domain.Event) { evt.Bid = &rec })
	e.logger.Info("bid placed",
		"lot_id", rec.LotID, "team_id", rec.TeamID,
		"amount", rec.Amount.StringFixed(2), "counter", rec.Counter)
	return rec, nil
}

// SetOptOut marks a team as not interested in the open lot, or clears the
// mark. Toggling to the current value is a no-op.
func (e *Engine) SetOptOut(lotID, teamID string, optedOut bool) error {
	e.lotMu.Lock()
	defer e.lotMu.Unlock()

	s := e.session
	if s.Status == domain.SessionPaused {
		return fmt.Errorf("auction: opt out: %w", domain.ErrPaused)
	}
	if s.Status != domain.SessionActive || !s.Phase.Biddable() || lotID != s.CurrentLotID {
		return fmt.Errorf("auction: opt out of %s: %w", lotID, domain.ErrNotBiddable)
	}
	if _, ok := e.ledger.Team(teamID); !ok {
		return fmt.Errorf("auction: opt out: team %s: %w", teamID, domain.ErrNotFound)
	}
	if optedOut && s.HighestBidderID == teamID {
		return fmt.Errorf("auction: opt out: %w", domain.ErrAlreadyHighest)
	}
	if e.optOuts[teamID] == optedOut {
		return nil
	}
	if optedOut {
		e.optOuts[teamID] = true
	} else {
		delete(e.optOuts, teamID)
	}
	e.emit(domain.EventOptOutChanged, func(evt *domain.Event) {
		evt.Detail = map[string]any{"lot_id": lotID, "team_id": teamID, "opted_out": optedOut}
	})
	return nil
}

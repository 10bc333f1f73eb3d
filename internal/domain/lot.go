package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotSet is a randomized group of pool players played lot by lot.
type LotSet struct {
	ID        string          `json:"id"`
	Number    int             `json:"number"`
	PlayerIDs []string        `json:"player_ids"`
	Revealed  map[string]bool `json:"revealed"`
	Completed bool            `json:"completed"`
}

// Remaining returns the number of players not yet revealed.
func (s LotSet) Remaining() int {
	n := 0
	for _, id := range s.PlayerIDs {
		if !s.Revealed[id] {
			n++
		}
	}
	return n
}

// SessionStatus is the global auction status.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionActive     SessionStatus = "active"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
)

// LotPhase is the sub-state of the lot currently on the block.
type LotPhase string

const (
	LotEmpty      LotPhase = "empty"
	LotRevealed   LotPhase = "revealed"
	LotGoingOnce  LotPhase = "going_once"
	LotGoingTwice LotPhase = "going_twice"
	LotResolving  LotPhase = "resolving"
	LotRTMPending LotPhase = "rtm_pending"
	LotResolved   LotPhase = "resolved"
	LotUnsold     LotPhase = "unsold"
)

// Biddable reports whether bids are accepted in this phase.
func (p LotPhase) Biddable() bool {
	return p == LotRevealed || p == LotGoingOnce || p == LotGoingTwice
}

// Session is the single process-wide auction state.
type Session struct {
	ID              string          `json:"id"`
	Status          SessionStatus   `json:"status"`
	Phase           LotPhase        `json:"phase"`
	CurrentSetID    string          `json:"current_set_id,omitempty"`
	CurrentLotID    string          `json:"current_lot_id,omitempty"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	HighestBidderID string          `json:"highest_bidder_id,omitempty"`
	BidCounter      int64           `json:"bid_counter"`
	GoingOnce       bool            `json:"going_once"`
	GoingTwice      bool            `json:"going_twice"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
}

// BidRecord is an immutable entry in the bid history.
type BidRecord struct {
	ID       string          `json:"id"`
	LotID    string          `json:"lot_id"`
	TeamID   string          `json:"team_id"`
	Amount   decimal.Decimal `json:"amount"`
	Counter  int64           `json:"counter"`
	PlacedAt time.Time       `json:"placed_at"`
	Valid    bool            `json:"valid"`
}

// BidRequest is a client's bid submission. ExpectedCounter is the bid
// counter the client observed when it computed Amount.
type BidRequest struct {
	LotID           string          `json:"lot_id"`
	TeamID          string          `json:"team_id"`
	Amount          decimal.Decimal `json:"amount"`
	ExpectedCounter int64           `json:"expected_counter"`
}

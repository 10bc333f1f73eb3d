package domain

import "time"

// EventType names a committed engine transition.
type EventType string

const (
	EventPlayersImported    EventType = "players_imported"
	EventRetentionCommitted EventType = "retention_committed"
	EventTeamConfigured     EventType = "team_configured"
	EventRulesUpdated       EventType = "rules_updated"
	EventSetsGenerated      EventType = "sets_generated"
	EventSetPicked          EventType = "set_picked"
	EventSetCompleted       EventType = "set_completed"
	EventLotRevealed        EventType = "lot_revealed"
	EventBidPlaced          EventType = "bid_placed"
	EventOptOutChanged      EventType = "opt_out_changed"
	EventGoingOnce          EventType = "going_once"
	EventGoingTwice         EventType = "going_twice"
	EventRTMOpened          EventType = "rtm_opened"
	EventRTMClosed          EventType = "rtm_closed"
	EventLotSold            EventType = "lot_sold"
	EventLotUnsold          EventType = "lot_unsold"
	EventSaleUndone         EventType = "sale_undone"
	EventPaused             EventType = "auction_paused"
	EventResumed            EventType = "auction_resumed"
	EventAuctionCompleted   EventType = "auction_completed"
	EventAuctionReset       EventType = "auction_reset"
)

// Event is published after every committed transition, in commit order. ID
// doubles as the idempotency key for persistence.
type Event struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	At        time.Time      `json:"at"`
	Session   Session        `json:"session"`
	Player    *Player        `json:"player,omitempty"`
	Players   []Player       `json:"players,omitempty"`
	Teams     []Team         `json:"teams,omitempty"`
	Bid       *BidRecord     `json:"bid,omitempty"`
	RTM       *RTMAttempt    `json:"rtm,omitempty"`
	Set       *LotSet        `json:"set,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Snapshot is a consistent read of the whole auction for display.
type Snapshot struct {
	Session   domain.Session     `json:"session"`
	Lot       *domain.Player     `json:"lot,omitempty"`
	Next      *domain.Player     `json:"next,omitempty"`
	Set       *domain.LotSet     `json:"set,omitempty"`
	NextBid   decimal.Decimal    `json:"next_bid"`
	OptedOut  []string           `json:"opted_out"`
	Bids      []domain.BidRecord `json:"bids"`
	Teams     []domain.Team      `json:"teams"`
	RTM       domain.RTMStatus   `json:"rtm"`
	Rules     domain.Rules       `json:"rules"`
	SetsLeft  int                `json:"sets_left"`
	CanUndo   bool               `json:"can_undo"`
	Seq       uint64             `json:"seq"`
	CreatedAt time.Time          `json:"created_at"`
}

// Snapshot takes every lock in order so the view is never torn. The bid
// history is most recent first and bounded by the configured window.
func (e *Engine) Snapshot() Snapshot {
	e.lock()
	defer e.unlock()

	s := e.session
	snap := Snapshot{
		Session:   s,
		NextBid:   e.nextBid(),
		OptedOut:  make([]string, 0, len(e.optOuts)),
		Teams:     e.ledger.Teams(),
		RTM:       e.rtm.status(),
		Rules:     e.ledger.Rules(),
		CanUndo:   e.undo != nil,
		Seq:       e.broker.Seq(),
		CreatedAt: e.now(),
	}
	if s.CurrentLotID != "" {
		if p, ok := e.registry.Player(s.CurrentLotID); ok {
			snap.Lot = &p
		}
	}
	if s.CurrentSetID != "" {
		if set, ok := e.registry.Set(s.CurrentSetID); ok {
			snap.Set = &set
		}
		if p, ok := e.registry.PeekNext(s.CurrentSetID); ok {
			snap.Next = &p
		}
	}
	for id := range e.optOuts {
		snap.OptedOut = append(snap.OptedOut, id)
	}
	for _, set := range e.registry.sets {
		if !set.Completed && set.Remaining() > 0 {
			snap.SetsLeft++
		}
	}

	n := min(len(e.bids), e.cfg.HistoryWindow)
	snap.Bids = make([]domain.BidRecord, 0, n)
	for i := len(e.bids) - 1; i >= 0 && len(snap.Bids) < n; i-- {
		snap.Bids = append(snap.Bids, e.bids[i])
	}
	return snap
}

// Players returns every registered player.
func (e *Engine) Players() []domain.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Players()
}

// Sets returns every lot set of the session.
func (e *Engine) Sets() []domain.LotSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Sets()
}

// Teams returns the ledger view of every team. Holding mu keeps an import
// or reset from showing half applied.
func (e *Engine) Teams() []domain.Team {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Teams()
}

// Team returns a single team.
func (e *Engine) Team(id string) (domain.Team, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Team(id)
}

// Bids returns the bid history of a lot, oldest first. An empty lotID
// returns the whole session.
func (e *Engine) Bids(lotID string) []domain.BidRecord {
	e.lotMu.Lock()
	defer e.lotMu.Unlock()
	out := make([]domain.BidRecord, 0, len(e.bids))
	for _, b := range e.bids {
		if lotID == "" || b.LotID == lotID {
			out = append(out, b)
		}
	}
	return out
}

// Archive collects the session's records for long-term storage.
func (e *Engine) Archive() domain.SessionArchive {
	e.lock()
	defer e.unlock()
	return domain.SessionArchive{
		SessionID:   e.session.ID,
		CompletedAt: e.now(),
		Bids:        append([]domain.BidRecord(nil), e.bids...),
		RTMAttempts: e.rtm.attempts(),
		Players:     e.registry.Players(),
		Teams:       e.ledger.Teams(),
	}
}

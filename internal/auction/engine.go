// Package auction runs a single live player auction: lot sequencing, bid
// arbitration, the Right-to-Match window and the team ledger, all owned by
// one Engine aggregate.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Engine is the auction aggregate. Operator commands hold mu and then
// lotMu for their whole critical section; PlaceBid and SetOptOut hold only
// lotMu. Ledger team locks are always taken after lotMu. Events are
// published while the locks are held so their order is the commit order.
type Engine struct {
	cfg    Config
	clock  Clock
	logger *slog.Logger
	broker *Broker

	mu    sync.Mutex
	lotMu sync.Mutex

	// Guarded by lotMu.
	session domain.Session
	lotBase decimal.Decimal
	optOuts map[string]bool
	bids    []domain.BidRecord

	// ledger is set once in New and locks itself.
	ledger *Ledger

	// Guarded by mu.
	registry *Registry
	rtm      *rtmCoordinator
	rtmSpent bool
	undo     *undoPoint
}

// undoPoint captures everything a resolution changed outside the ledger.
type undoPoint struct {
	player  domain.Player
	session domain.Session
	lotBase decimal.Decimal
	optOuts map[string]bool
	// drawn is the lot the resolution auto-advanced to, if any.
	drawn string
}

// Resolution describes the outcome of a sold/unsold/RTM command.
type Resolution struct {
	Player  domain.Player      `json:"player"`
	Team    *domain.Team       `json:"team,omitempty"`
	Price   decimal.Decimal    `json:"price"`
	Method  domain.Acquisition `json:"method,omitempty"`
	RTM     *domain.RTMAttempt `json:"rtm,omitempty"`
	Pending bool               `json:"rtm_pending"`
	Next    *domain.Player     `json:"next,omitempty"`
}

// New creates an engine in the not_started state.
func New(cfg Config, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   logger.With(slog.String("component", "auction")),
		broker:   NewBroker(),
		registry: NewRegistry(cfg.Seed),
		ledger:   NewLedger(cfg.Rules),
	}
	e.rtm = newRTMCoordinator(cfg.Clock, cfg.RTMWindow, e.expireRTM)
	e.resetSession()
	return e
}

func (e *Engine) resetSession() {
	e.session = domain.Session{
		ID:     uuid.NewString(),
		Status: domain.SessionNotStarted,
		Phase:  domain.LotEmpty,
	}
	e.lotBase = decimal.Zero
	e.optOuts = make(map[string]bool)
	e.bids = nil
	e.rtmSpent = false
	e.undo = nil
}

func (e *Engine) lock() {
	e.mu.Lock()
	e.lotMu.Lock()
}

func (e *Engine) unlock() {
	e.lotMu.Unlock()
	e.mu.Unlock()
}

// Subscribe streams every event committed after the call, in commit order.
func (e *Engine) Subscribe(ctx context.Context) <-chan domain.Event {
	return e.broker.Subscribe(ctx)
}

// Close cancels any pending RTM timer and ends all subscriptions.
func (e *Engine) Close() {
	e.lock()
	if w := e.rtm.current; w != nil && w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	e.unlock()
	e.broker.Close()
}

// Session returns the current session record.
func (e *Engine) Session() domain.Session {
	e.lotMu.Lock()
	defer e.lotMu.Unlock()
	return e.session
}

// emit publishes an event stamped with the current session. Callers hold
// lotMu.
func (e *Engine) emit(typ domain.EventType, fill func(*domain.Event)) domain.Event {
	evt := domain.Event{
		ID:        uuid.NewString(),
		SessionID: e.session.ID,
		Type:      typ,
		At:        e.clock.Now(),
		Session:   e.session,
	}
	if fill != nil {
		fill(&evt)
	}
	return e.broker.Publish(evt)
}

func (e *Engine) requireStatus(op string, allowed ...domain.SessionStatus) error {
	for _, s := range allowed {
		if e.session.Status == s {
			return nil
		}
	}
	return fmt.Errorf("auction: %s while %s: %w", op, e.session.Status, domain.ErrInvalidTransition)
}

func (e *Engine) nextBid() decimal.Decimal {
	if e.session.CurrentLotID == "" {
		return decimal.Zero
	}
	return domain.NextBid(e.session.CurrentBid, e.lotBase)
}

func playerPtr(p domain.Player) *domain.Player { return &p }

func teamPtr(t domain.Team) *domain.Team { return &t }

func (e *Engine) now() time.Time { return e.clock.Now() }

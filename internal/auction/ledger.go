package auction

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Delta is the ledger effect of a single committed sale. Applying it in
// reverse restores the team exactly.
type Delta struct {
	PlayerID string
	TeamID   string
	Price    decimal.Decimal
	Method   domain.Acquisition
	Category domain.Category
	Overseas bool
}

type ledgerEntry struct {
	mu   sync.Mutex
	team domain.Team
}

// Ledger tracks every team's purse and roster counts. Each team has its own
// lock; callers holding the lot lock may take team locks, never the reverse.
type Ledger struct {
	mu      sync.RWMutex
	rules   domain.Rules
	entries map[string]*ledgerEntry
	codes   map[string]string

	undoMu sync.Mutex
	last   *Delta
}

// NewLedger creates a ledger governed by rules.
func NewLedger(rules domain.Rules) *Ledger {
	return &Ledger{
		rules:   rules,
		entries: make(map[string]*ledgerEntry),
		codes:   make(map[string]string),
	}
}

// Rules returns the auction-wide defaults.
func (l *Ledger) Rules() domain.Rules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rules
}

// SetRules replaces the auction-wide defaults. Existing teams keep their
// purse and cards; the caps apply from the next commit.
func (l *Ledger) SetRules(rules domain.Rules) {
	l.mu.Lock()
	l.rules = rules
	l.mu.Unlock()
}

// AddTeam registers a team with the default purse and RTM cards.
func (l *Ledger) AddTeam(rec domain.TeamRecord) (domain.Team, error) {
	if rec.Code == "" {
		return domain.Team{}, fmt.Errorf("ledger: add team: empty code: %w", domain.ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.codes[rec.Code]; ok {
		return domain.Team{}, fmt.Errorf("ledger: add team %s: %w", rec.Code, domain.ErrAlreadyExists)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := l.entries[id]; ok {
		return domain.Team{}, fmt.Errorf("ledger: add team %s: %w", id, domain.ErrAlreadyExists)
	}
	name := rec.Name
	if name == "" {
		name = rec.Code
	}
	t := l.freshTeam(id, rec.Code, name)
	l.entries[id] = &ledgerEntry{team: t}
	l.codes[rec.Code] = id
	return t.Clone(), nil
}

func (l *Ledger) freshTeam(id, code, name string) domain.Team {
	return domain.Team{
		ID:             id,
		Code:           code,
		Name:           name,
		Purse:          l.rules.DefaultPurse,
		StartingPurse:  l.rules.DefaultPurse,
		CategoryCounts: make(map[domain.Category]int),
		RTMCards:       l.rules.DefaultRTMCards,
		RTMEnabled:     true,
	}
}

// Team returns a copy of a team's ledger entry.
func (l *Ledger) Team(id string) (domain.Team, bool) {
	e := l.entry(id)
	if e == nil {
		return domain.Team{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.team.Clone(), true
}

// TeamByCode resolves a franchise code to its team.
func (l *Ledger) TeamByCode(code string) (domain.Team, bool) {
	l.mu.RLock()
	id, ok := l.codes[code]
	l.mu.RUnlock()
	if !ok {
		return domain.Team{}, false
	}
	return l.Team(id)
}

// Teams returns copies of every team ordered by code.
func (l *Ledger) Teams() []domain.Team {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Team, 0, len(l.entries))
	for _, e := range l.entries {
		e.mu.Lock()
		out = append(out, e.team.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (l *Ledger) entry(id string) *ledgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[id]
}

// Configure applies per-team overrides. Changing the starting purse keeps
// the amount already spent.
func (l *Ledger) Configure(teamID string, cfg domain.TeamConfig) (domain.Team, error) {
	e := l.entry(teamID)
	if e == nil {
		return domain.Team{}, fmt.Errorf("ledger: configure %s: %w", teamID, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.team.Clone()
	if cfg.StartingPurse != nil {
		spent := next.StartingPurse.Sub(next.Purse)
		if cfg.StartingPurse.LessThan(spent) {
			return domain.Team{}, fmt.Errorf("ledger: configure %s: starting purse below amount spent: %w", next.Code, domain.ErrInvalidArgument)
		}
		next.StartingPurse = *cfg.StartingPurse
		next.Purse = cfg.StartingPurse.Sub(spent)
	}
	if cfg.RTMCards != nil {
		if *cfg.RTMCards < 0 {
			return domain.Team{}, fmt.Errorf("ledger: configure %s: negative rtm cards: %w", next.Code, domain.ErrInvalidArgument)
		}
		next.RTMCards = *cfg.RTMCards
	}
	if cfg.RTMEnabled != nil {
		next.RTMEnabled = *cfg.RTMEnabled
	}
	if cfg.MaxSquadOverride != nil {
		if *cfg.MaxSquadOverride < 0 || (*cfg.MaxSquadOverride > 0 && *cfg.MaxSquadOverride < next.SquadSize) {
			return domain.Team{}, fmt.Errorf("ledger: configure %s: squad cap below squad size: %w", next.Code, domain.ErrInvalidArgument)
		}
		next.MaxSquadOverride = *cfg.MaxSquadOverride
	}
	if cfg.MaxOverseasOverride != nil {
		if *cfg.MaxOverseasOverride < 0 || (*cfg.MaxOverseasOverride > 0 && *cfg.MaxOverseasOverride < next.OverseasCount) {
			return domain.Team{}, fmt.Errorf("ledger: configure %s: overseas cap below overseas count: %w", next.Code, domain.ErrInvalidArgument)
		}
		next.MaxOverseasOverride = *cfg.MaxOverseasOverride
	}
	e.team = next
	return next.Clone(), nil
}

// CanAfford reports whether the team could take the player at price
// without breaching its purse or roster caps.
func (l *Ledger) CanAfford(p domain.Player, teamID string, price decimal.Decimal) error {
	e := l.entry(teamID)
	if e == nil {
		return fmt.Errorf("ledger: team %s: %w", teamID, domain.ErrNotFound)
	}
	rules := l.Rules()
	e.mu.Lock()
	defer e.mu.Unlock()
	return admit(e.team, rules, p, price)
}

func admit(t domain.Team, rules domain.Rules, p domain.Player, price decimal.Decimal) error {
	if t.SquadSize+1 > t.MaxSquad(rules.MaxSquad) {
		return fmt.Errorf("ledger: %s squad of %d: %w", t.Code, t.SquadSize, domain.ErrCapExceeded)
	}
	if p.Overseas() && t.OverseasCount+1 > t.MaxOverseas(rules.MaxOverseas) {
		return fmt.Errorf("ledger: %s overseas count %d: %w", t.Code, t.OverseasCount, domain.ErrCapExceeded)
	}
	if t.Purse.LessThan(price) {
		return fmt.Errorf("ledger: %s purse %s below %s: %w", t.Code, t.Purse.StringFixed(2), price.StringFixed(2), domain.ErrInsufficientPurse)
	}
	return nil
}

// CommitSale charges the team for a sale and records it as the undoable
// delta. Nothing changes when any check fails.
func (l *Ledger) CommitSale(p domain.Player, teamID string, price decimal.Decimal, method domain.Acquisition) (domain.Team, error) {
	t, err := l.apply(p, teamID, price, method == domain.AcquisitionRTM)
	if err != nil {
		return domain.Team{}, err
	}
	l.undoMu.Lock()
	l.last = &Delta{
		PlayerID: p.ID,
		TeamID:   teamID,
		Price:    price,
		Method:   method,
		Category: p.Category,
		Overseas: p.Overseas(),
	}
	l.undoMu.Unlock()
	return t, nil
}

// CommitRetention charges the team for a pre-auction retention. Retentions
// are never undoable and leave the last sale delta untouched.
func (l *Ledger) CommitRetention(p domain.Player, teamID string, price decimal.Decimal) (domain.Team, error) {
	return l.apply(p, teamID, price, false)
}

func (l *Ledger) apply(p domain.Player, teamID string, price decimal.Decimal, useCard bool) (domain.Team, error) {
	if price.IsNegative() {
		return domain.Team{}, fmt.Errorf("ledger: negative price: %w", domain.ErrInvalidArgument)
	}
	e := l.entry(teamID)
	if e == nil {
		return domain.Team{}, fmt.Errorf("ledger: team %s: %w", teamID, domain.ErrNotFound)
	}
	rules := l.Rules()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := admit(e.team, rules, p, price); err != nil {
		return domain.Team{}, err
	}
	if useCard && e.team.RTMCards < 1 {
		return domain.Team{}, fmt.Errorf("ledger: %s has no rtm cards: %w", e.team.Code, domain.ErrInvalidState)
	}
	e.team.Purse = e.team.Purse.Sub(price)
	e.team.SquadSize++
	e.team.CategoryCounts[p.Category]++
	if p.Overseas() {
		e.team.OverseasCount++
	}
	if useCard {
		e.team.RTMCards--
	}
	return e.team.Clone(), nil
}

// LastDelta returns the most recent undoable sale, if any.
func (l *Ledger) LastDelta() (Delta, bool) {
	l.undoMu.Lock()
	defer l.undoMu.Unlock()
	if l.last == nil {
		return Delta{}, false
	}
	return *l.last, true
}

// ForgetLast drops the undoable delta without reversing it.
func (l *Ledger) ForgetLast() {
	l.undoMu.Lock()
	l.last = nil
	l.undoMu.Unlock()
}

// Undo reverses the most recent sale exactly once.
func (l *Ledger) Undo() (Delta, domain.Team, error) {
	l.undoMu.Lock()
	d := l.last
	l.last = nil
	l.undoMu.Unlock()
	if d == nil {
		return Delta{}, domain.Team{}, fmt.Errorf("ledger: undo: %w", domain.ErrNothingToUndo)
	}
	t, err := l.release(d.TeamID, d.Price, d.Category, d.Overseas, d.Method == domain.AcquisitionRTM)
	if err != nil {
		return Delta{}, domain.Team{}, err
	}
	return *d, t, nil
}

// Refund reverses an owned player's effect on its team without touching
// the undo slot.
func (l *Ledger) Refund(p domain.Player) (domain.Team, error) {
	return l.release(p.TeamID, p.SoldPrice, p.Category, p.Overseas(), p.Acquisition == domain.AcquisitionRTM)
}

func (l *Ledger) release(teamID string, price decimal.Decimal, cat domain.Category, overseas, card bool) (domain.Team, error) {
	e := l.entry(teamID)
	if e == nil {
		return domain.Team{}, fmt.Errorf("ledger: team %s: %w", teamID, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.team.Purse = e.team.Purse.Add(price)
	e.team.SquadSize--
	if e.team.CategoryCounts[cat]--; e.team.CategoryCounts[cat] <= 0 {
		delete(e.team.CategoryCounts, cat)
	}
	if overseas {
		e.team.OverseasCount--
	}
	if card {
		e.team.RTMCards++
	}
	return e.team.Clone(), nil
}

// Reset restores every team to the current defaults, dropping overrides and
// roster counts.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		e.mu.Lock()
		e.team = l.freshTeam(id, e.team.Code, e.team.Name)
		e.mu.Unlock()
	}
	l.undoMu.Lock()
	l.last = nil
	l.undoMu.Unlock()
}

// Clear drops every team. The rules are kept.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = make(map[string]*ledgerEntry)
	l.codes = make(map[string]string)
	l.mu.Unlock()
	l.ForgetLast()
}

// Restore re-applies an owned player after a reset, bypassing caps and
// without consuming an RTM card.
func (l *Ledger) Restore(p domain.Player) error {
	e := l.entry(p.TeamID)
	if e == nil {
		return fmt.Errorf("ledger: team %s: %w", p.TeamID, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.team.Purse = e.team.Purse.Sub(p.SoldPrice)
	e.team.SquadSize++
	e.team.CategoryCounts[p.Category]++
	if p.Overseas() {
		e.team.OverseasCount++
	}
	return nil
}

package auction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// ImportResult counts what an Import added.
type ImportResult struct {
	Teams    int `json:"teams"`
	Players  int `json:"players"`
	Retained int `json:"retained"`
}

// Import loads teams, pool players and retained players. It runs only
// before the auction starts and applies nothing unless every record is
// accepted. Teams whose code already exists are reused.
func (e *Engine) Import(seed domain.Seed) (ImportResult, error) {
	e.lock()
	defer e.unlock()

	if e.session.Status != domain.SessionNotStarted {
		return ImportResult{}, fmt.Errorf("auction: import while %s: %w", e.session.Status, domain.ErrInvalidState)
	}

	rules := e.ledger.Rules()
	teams := make(map[string]domain.Team)
	var newTeams []domain.TeamRecord
	for _, t := range e.ledger.Teams() {
		teams[t.Code] = t
	}
	for _, rec := range seed.Teams {
		if rec.Code == "" {
			return ImportResult{}, fmt.Errorf("auction: import team %q: empty code: %w", rec.Name, domain.ErrInvalidArgument)
		}
		if _, ok := teams[rec.Code]; ok {
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		teams[rec.Code] = domain.Team{
			ID:             rec.ID,
			Code:           rec.Code,
			Purse:          rules.DefaultPurse,
			StartingPurse:  rules.DefaultPurse,
			CategoryCounts: make(map[domain.Category]int),
		}
		newTeams = append(newTeams, rec)
	}

	seen := make(map[string]bool)
	toPlayer := func(rec domain.PlayerRecord) (domain.Player, error) {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		switch {
		case rec.Name == "":
			return domain.Player{}, fmt.Errorf("auction: import player %s: empty name: %w", rec.ID, domain.ErrInvalidArgument)
		case !rec.Category.Valid():
			return domain.Player{}, fmt.Errorf("auction: import player %s: category %q: %w", rec.Name, rec.Category, domain.ErrInvalidArgument)
		case !rec.BasePrice.IsPositive():
			return domain.Player{}, fmt.Errorf("auction: import player %s: base price %s: %w", rec.Name, rec.BasePrice, domain.ErrInvalidArgument)
		case seen[rec.ID]:
			return domain.Player{}, fmt.Errorf("auction: import player %s: %w", rec.ID, domain.ErrAlreadyExists)
		}
		if _, ok := e.registry.Player(rec.ID); ok {
			return domain.Player{}, fmt.Errorf("auction: import player %s: %w", rec.ID, domain.ErrAlreadyExists)
		}
		seen[rec.ID] = true
		country := rec.Country
		if country == "" {
			country = domain.CountryDomestic
		}
		p := domain.Player{
			ID:        rec.ID,
			Name:      rec.Name,
			Category:  rec.Category,
			Country:   country,
			BasePrice: rec.BasePrice,
			Status:    domain.PlayerStatusPool,
		}
		if rec.PreviousTeamCode != "" {
			t, ok := teams[rec.PreviousTeamCode]
			if !ok {
				return domain.Player{}, fmt.Errorf("auction: import player %s: previous team %q: %w", rec.Name, rec.PreviousTeamCode, domain.ErrInvalidArgument)
			}
			p.PreviousTeamID = t.ID
		}
		return p, nil
	}

	pool := make([]domain.Player, 0, len(seed.Players))
	for _, rec := range seed.Players {
		p, err := toPlayer(rec)
		if err != nil {
			return ImportResult{}, err
		}
		pool = append(pool, p)
	}

	retained := make([]domain.Player, 0, len(seed.Retained))
	for _, rec := range seed.Retained {
		p, err := toPlayer(rec.PlayerRecord)
		if err != nil {
			return ImportResult{}, err
		}
		t, ok := teams[rec.TeamCode]
		if !ok {
			return ImportResult{}, fmt.Errorf("auction: import retained %s: team %q: %w", p.Name, rec.TeamCode, domain.ErrInvalidArgument)
		}
		price := rec.RetainedPrice
		if price.IsZero() {
			price = p.BasePrice
		}
		if err := admit(t, rules, p, price); err != nil {
			return ImportResult{}, fmt.Errorf("auction: import retained %s: %w", p.Name, err)
		}
		t.Purse = t.Purse.Sub(price)
		t.SquadSize++
		if p.Overseas() {
			t.OverseasCount++
		}
		teams[rec.TeamCode] = t

		p.Status = domain.PlayerStatusRetained
		p.TeamID = t.ID
		p.SoldPrice = price
		p.Acquisition = domain.AcquisitionRetention
		retained = append(retained, p)
	}

	for _, rec := range newTeams {
		if _, err := e.ledger.AddTeam(rec); err != nil {
			return ImportResult{}, fmt.Errorf("auction: import: %w", err)
		}
	}
	for _, p := range pool {
		if err := e.registry.AddPlayer(p); err != nil {
			return ImportResult{}, fmt.Errorf("auction: import: %w", err)
		}
	}
	for _, p := range retained {
		if err := e.registry.AddPlayer(p); err != nil {
			return ImportResult{}, fmt.Errorf("auction: import: %w", err)
		}
		t, err := e.ledger.CommitRetention(p, p.TeamID, p.SoldPrice)
		if err != nil {
			return ImportResult{}, fmt.Errorf("auction: import: %w", err)
		}
		e.emit(domain.EventRetentionCommitted, func(evt *domain.Event) {
			evt.Player = playerPtr(p)
			evt.Teams = []domain.Team{t}
		})
	}

	res := ImportResult{Teams: len(newTeams), Players: len(pool), Retained: len(retained)}
	e.emit(domain.EventPlayersImported, func(evt *domain.Event) {
		evt.Players = pool
		evt.Teams = e.ledger.Teams()
		evt.Detail = map[string]any{"teams": res.Teams, "players": res.Players, "retained": res.Retained}
	})
	e.logger.Info("seed imported", "teams", res.Teams, "players", res.Players, "retained", res.Retained)
	return res, nil
}

// RetainPlayer moves a pool player onto a team's roster before the auction
// starts. A zero price retains at the base price.
func (e *Engine) RetainPlayer(playerID, teamCode string, price decimal.Decimal) (domain.Player, domain.Team, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("retain player", domain.SessionNotStarted); err != nil {
		return domain.Player{}, domain.Team{}, err
	}
	p := e.registry.player(playerID)
	if p == nil {
		return domain.Player{}, domain.Team{}, fmt.Errorf("auction: retain player %s: %w", playerID, domain.ErrNotFound)
	}
	if p.Status != domain.PlayerStatusPool {
		return domain.Player{}, domain.Team{}, fmt.Errorf("auction: retain player %s: status %s: %w", p.Name, p.Status, domain.ErrInvalidState)
	}
	team, ok := e.ledger.TeamByCode(teamCode)
	if !ok {
		return domain.Player{}, domain.Team{}, fmt.Errorf("auction: retain player %s: team %q: %w", p.Name, teamCode, domain.ErrNotFound)
	}
	if price.IsZero() {
		price = p.BasePrice
	}

	retained := *p
	retained.Status = domain.PlayerStatusRetained
	retained.TeamID = team.ID
	retained.SoldPrice = price
	retained.Acquisition = domain.AcquisitionRetention
	team, err := e.ledger.CommitRetention(retained, team.ID, price)
	if err != nil {
		return domain.Player{}, domain.Team{}, fmt.Errorf("auction: retain player %s: %w", p.Name, err)
	}
	e.registry.Withdraw(playerID)
	*p = retained

	e.emit(domain.EventRetentionCommitted, func(evt *domain.Event) {
		evt.Player = playerPtr(retained)
		evt.Teams = []domain.Team{team}
	})
	e.logger.Info("player retained", "player_id", retained.ID, "team", team.Code, "amount", price.StringFixed(2))
	return retained, team, nil
}

func (e *Engine) requireIdle(op string) error {
	if e.session.Status == domain.SessionActive || e.session.Status == domain.SessionPaused {
		return fmt.Errorf("auction: %s while %s: %w", op, e.session.Status, domain.ErrInvalidState)
	}
	return nil
}

// ConfigureTeam applies per-team overrides while the auction is not running.
func (e *Engine) ConfigureTeam(teamID string, cfg domain.TeamConfig) (domain.Team, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireIdle("configure team"); err != nil {
		return domain.Team{}, err
	}
	t, err := e.ledger.Configure(teamID, cfg)
	if err != nil {
		return domain.Team{}, err
	}
	e.emit(domain.EventTeamConfigured, func(evt *domain.Event) { evt.Teams = []domain.Team{t} })
	return t, nil
}

// UpdateRules replaces the auction-wide defaults while the auction is not
// running.
func (e *Engine) UpdateRules(rules domain.Rules) (domain.Rules, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireIdle("update rules"); err != nil {
		return domain.Rules{}, err
	}
	switch {
	case rules.MaxSquad < 1, rules.MaxOverseas < 0, rules.MaxOverseas > rules.MaxSquad:
		return domain.Rules{}, fmt.Errorf("auction: update rules: caps %d/%d: %w", rules.MaxSquad, rules.MaxOverseas, domain.ErrInvalidArgument)
	case !rules.DefaultPurse.IsPositive():
		return domain.Rules{}, fmt.Errorf("auction: update rules: purse %s: %w", rules.DefaultPurse, domain.ErrInvalidArgument)
	case rules.DefaultRTMCards < 0:
		return domain.Rules{}, fmt.Errorf("auction: update rules: rtm cards %d: %w", rules.DefaultRTMCards, domain.ErrInvalidArgument)
	}
	e.ledger.SetRules(rules)
	e.emit(domain.EventRulesUpdated, func(evt *domain.Event) {
		evt.Detail = map[string]any{"rules": rules}
	})
	return rules, nil
}

// Rules returns the auction-wide defaults.
func (e *Engine) Rules() domain.Rules {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Rules()
}

// GenerateSets repartitions the pool into randomized lot sets.
func (e *Engine) GenerateSets(groupSize int) ([]domain.LotSet, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("generate sets", domain.SessionNotStarted, domain.SessionActive, domain.SessionPaused); err != nil {
		return nil, err
	}
	if e.session.CurrentLotID != "" {
		return nil, fmt.Errorf("auction: generate sets with lot %s in progress: %w", e.session.CurrentLotID, domain.ErrInvalidState)
	}
	sets, err := e.registry.GenerateSets(groupSize)
	if err != nil {
		return nil, err
	}
	e.session.CurrentSetID = ""
	e.emit(domain.EventSetsGenerated, func(evt *domain.Event) {
		evt.Detail = map[string]any{"sets": len(sets), "group_size": groupSize}
	})
	e.logger.Info("sets generated", "sets", len(sets), "group_size", groupSize)
	return sets, nil
}

// PickSet selects the next lot set at random and makes it current.
func (e *Engine) PickSet() (domain.LotSet, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("pick set", domain.SessionNotStarted, domain.SessionActive); err != nil {
		return domain.LotSet{}, err
	}
	if e.session.CurrentLotID != "" {
		return domain.LotSet{}, fmt.Errorf("auction: pick set with lot on the block: %w", domain.ErrInvalidTransition)
	}
	set, err := e.registry.PickSet()
	if err != nil {
		return domain.LotSet{}, err
	}
	e.session.CurrentSetID = set.ID
	e.emit(domain.EventSetPicked, func(evt *domain.Event) { evt.Set = &set })
	e.logger.Info("set picked", "set", set.Number, "players", len(set.PlayerIDs))
	return set, nil
}

// DrawLot reveals the next lot of the current set. The first successful
// draw starts the auction.
func (e *Engine) DrawLot() (domain.Player, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("draw lot", domain.SessionNotStarted, domain.SessionActive); err != nil {
		return domain.Player{}, err
	}
	if e.session.CurrentLotID != "" {
		return domain.Player{}, fmt.Errorf("auction: draw lot with lot on the block: %w", domain.ErrInvalidTransition)
	}
	setID := e.session.CurrentSetID
	if setID == "" {
		return domain.Player{}, fmt.Errorf("auction: draw lot without a set: %w", domain.ErrInvalidTransition)
	}
	p, err := e.draw(setID)
	if err != nil {
		return domain.Player{}, err
	}
	e.undo = nil
	e.ledger.ForgetLast()
	e.reveal(p)
	return p, nil
}

// PeekNext returns the lot the next draw on the current set will reveal.
func (e *Engine) PeekNext() (domain.Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lotMu.Lock()
	setID := e.session.CurrentSetID
	e.lotMu.Unlock()
	if setID == "" {
		return domain.Player{}, false
	}
	return e.registry.PeekNext(setID)
}

func (e *Engine) reveal(p domain.Player) {
	s := &e.session
	if s.Status == domain.SessionNotStarted {
		s.Status = domain.SessionActive
	}
	e.clearLot()
	s.CurrentLotID = p.ID
	s.Phase = domain.LotRevealed
	e.lotBase = p.BasePrice
	e.emit(domain.EventLotRevealed, func(evt *domain.Event) {
		evt.Player = playerPtr(p)
		if next, ok := e.registry.PeekNext(s.CurrentSetID); ok {
			evt.Detail = map[string]any{"next_player_id": next.ID}
		}
	})
	e.logger.Info("lot revealed", "lot_id", p.ID, "player", p.Name, "base_price", p.BasePrice.StringFixed(2))
}

func (e *Engine) clearLot() {
	s := &e.session
	s.CurrentLotID = ""
	s.CurrentBid = decimal.Zero
	s.HighestBidderID = ""
	s.BidCounter = 0
	s.GoingOnce, s.GoingTwice = false, false
	s.Phase = domain.LotEmpty
	e.lotBase = decimal.Zero
	e.optOuts = make(map[string]bool)
	e.rtmSpent = false
}

// draw reveals the next player of a set, retiring the set once it runs
// dry. set_completed is announced only the first time.
func (e *Engine) draw(setID string) (domain.Player, error) {
	announced := false
	if s := e.registry.set(setID); s != nil {
		announced = s.Completed
	}
	p, err := e.registry.DrawLot(setID)
	if errors.Is(err, domain.ErrExhausted) {
		e.finishSet(setID, !announced)
	}
	return p, err
}

func (e *Engine) finishSet(setID string, announce bool) {
	set, ok := e.registry.Complete(setID)
	if e.session.CurrentSetID == setID {
		e.session.CurrentSetID = ""
	}
	if !ok || !announce {
		return
	}
	e.emit(domain.EventSetCompleted, func(evt *domain.Event) { evt.Set = &set })
	e.logger.Info("set completed", "set", set.Number)
}

// Pause freezes bidding, resolution and the RTM countdown.
func (e *Engine) Pause() error {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("pause", domain.SessionActive); err != nil {
		return err
	}
	now := e.now()
	e.session.Status = domain.SessionPaused
	e.session.PausedAt = &now
	e.rtm.pause()
	e.emit(domain.EventPaused, nil)
	e.logger.Info("auction paused")
	return nil
}

// Resume lifts a pause; an open RTM window continues from its remaining
// time.
func (e *Engine) Resume() error {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("resume", domain.SessionPaused); err != nil {
		return err
	}
	e.session.Status = domain.SessionActive
	e.session.PausedAt = nil
	e.rtm.resume()
	e.emit(domain.EventResumed, nil)
	e.logger.Info("auction resumed")
	return nil
}

// CompletionSummary is reported when the auction ends.
type CompletionSummary struct {
	Sold     int             `json:"sold"`
	Retained int             `json:"retained"`
	Unsold   int             `json:"unsold"`
	Spent    decimal.Decimal `json:"spent"`
}

// Complete ends the auction. Every player still in the pool, and the lot
// on the block, becomes unsold. Refused while an RTM window is open.
func (e *Engine) Complete() (CompletionSummary, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("complete", domain.SessionActive, domain.SessionPaused); err != nil {
		return CompletionSummary{}, err
	}
	if e.rtm.isOpen() {
		return CompletionSummary{}, fmt.Errorf("auction: complete with rtm window open: %w", domain.ErrInvalidTransition)
	}

	openLot := e.session.CurrentLotID
	if lot := openLot; lot != "" {
		for i := range e.bids {
			if e.bids[i].LotID == lot {
				e.bids[i].Valid = false
			}
		}
	}

	var unsold []domain.Player
	var sum CompletionSummary
	sum.Spent = decimal.Zero
	for _, id := range e.registry.order {
		p := e.registry.players[id]
		switch p.Status {
		case domain.PlayerStatusPool, domain.PlayerStatusRevealed:
			p.Status = domain.PlayerStatusUnsold
			unsold = append(unsold, *p)
			sum.Unsold++
		case domain.PlayerStatusUnsold:
			sum.Unsold++
		case domain.PlayerStatusSold:
			sum.Sold++
			sum.Spent = sum.Spent.Add(p.SoldPrice)
		case domain.PlayerStatusRetained:
			sum.Retained++
			sum.Spent = sum.Spent.Add(p.SoldPrice)
		}
	}
	for _, set := range e.registry.sets {
		set.Completed = true
		set.queued = ""
	}

	e.clearLot()
	e.session.Status = domain.SessionCompleted
	e.session.CurrentSetID = ""
	e.session.PausedAt = nil
	e.undo = nil
	e.ledger.ForgetLast()
	e.emit(domain.EventAuctionCompleted, func(evt *domain.Event) {
		evt.Players = unsold
		evt.Teams = e.ledger.Teams()
		evt.Detail = map[string]any{
			"sold": sum.Sold, "retained": sum.Retained,
			"unsold": sum.Unsold, "spent": sum.Spent.StringFixed(2),
		}
		if openLot != "" {
			evt.Detail["invalidated_lot_id"] = openLot
		}
	})
	e.logger.Info("auction completed", "sold", sum.Sold, "unsold", sum.Unsold, "spent", sum.Spent.StringFixed(2))
	return sum, nil
}

// NewAuctionOptions controls what survives StartNew.
type NewAuctionOptions struct {
	KeepSold     bool `json:"keep_sold"`
	KeepRetained bool `json:"keep_retained"`
	ResetTeams   bool `json:"reset_teams"`
}

// StartNew returns a completed auction to not_started. Pool, unsold and
// dropped players, sets, bid and RTM history are always cleared. Sold and
// retained players survive only when asked; removed owners are refunded.
// ResetTeams restores every team to the defaults before re-applying the
// players that were kept.
func (e *Engine) StartNew(opts NewAuctionOptions) error {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("start new auction", domain.SessionCompleted); err != nil {
		return err
	}

	removed := e.registry.Retain(func(p domain.Player) bool {
		switch p.Status {
		case domain.PlayerStatusSold:
			return opts.KeepSold
		case domain.PlayerStatusRetained:
			return opts.KeepRetained
		}
		return false
	})

	if opts.ResetTeams {
		e.ledger.Reset()
		for _, p := range e.registry.Players() {
			if err := e.ledger.Restore(p); err != nil {
				e.logger.Warn("restore kept player", "player_id", p.ID, "error", err)
			}
		}
	} else {
		for _, p := range removed {
			if !p.Owned() {
				continue
			}
			if _, err := e.ledger.Refund(p); err != nil {
				e.logger.Warn("refund removed player", "player_id", p.ID, "error", err)
			}
		}
	}

	e.rtm.reset()
	e.ledger.ForgetLast()
	previous := e.session.ID
	e.resetSession()
	e.emit(domain.EventAuctionReset, func(evt *domain.Event) {
		evt.Teams = e.ledger.Teams()
		evt.Players = e.registry.Players()
		evt.Detail = map[string]any{
			"previous_session_id": previous,
			"removed":             len(removed),
			"keep_sold":           opts.KeepSold,
			"keep_retained":       opts.KeepRetained,
			"reset_teams":         opts.ResetTeams,
		}
	})
	e.logger.Info("auction reset", "previous_session_id", previous, "removed", len(removed))
	return nil
}

// Reset discards every team, player and session record, returning the
// engine to the state New produced.
func (e *Engine) Reset() {
	e.lock()
	defer e.unlock()
	e.rtm.reset()
	e.registry = NewRegistry(e.cfg.Seed)
	e.ledger.Clear()
	e.resetSession()
	e.emit(domain.EventAuctionReset, func(evt *domain.Event) {
		evt.Detail = map[string]any{"hard": true}
	})
}

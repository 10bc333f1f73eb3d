package auction

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// GoingOnce marks the open lot as going once. It needs a standing bid.
func (e *Engine) GoingOnce() error {
	return e.escalate(domain.LotRevealed, domain.LotGoingOnce, domain.EventGoingOnce)
}

// GoingTwice follows GoingOnce.
func (e *Engine) GoingTwice() error {
	return e.escalate(domain.LotGoingOnce, domain.LotGoingTwice, domain.EventGoingTwice)
}

func (e *Engine) escalate(from, to domain.LotPhase, typ domain.EventType) error {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus(string(typ), domain.SessionActive); err != nil {
		return err
	}
	s := &e.session
	if s.Phase != from || s.BidCounter == 0 {
		return fmt.Errorf("auction: %s from %s: %w", typ, s.Phase, domain.ErrInvalidTransition)
	}
	s.Phase = to
	s.GoingOnce = true
	s.GoingTwice = to == domain.LotGoingTwice
	e.emit(typ, nil)
	return nil
}

// MarkSold resolves the open lot to the highest bidder, or opens the RTM
// window when the player's previous team is entitled to match.
func (e *Engine) MarkSold() (Resolution, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("mark sold", domain.SessionActive); err != nil {
		return Resolution{}, err
	}
	s := e.session
	if !s.Phase.Biddable() || s.BidCounter == 0 {
		return Resolution{}, fmt.Errorf("auction: mark sold in phase %s with %d bids: %w", s.Phase, s.BidCounter, domain.ErrInvalidTransition)
	}
	p := *e.registry.player(s.CurrentLotID)
	if err := e.ledger.CanAfford(p, s.HighestBidderID, s.CurrentBid); err != nil {
		return Resolution{}, fmt.Errorf("auction: mark sold %s: %w", p.Name, err)
	}

	if prev, ok := e.rtmEligible(p); ok {
		e.rtmSpent = true
		attempt := e.rtm.open(domain.RTMAttempt{
			ID:              uuid.NewString(),
			LotID:           p.ID,
			PreviousTeamID:  prev.ID,
			CompetingTeamID: s.HighestBidderID,
			Amount:          s.CurrentBid,
			OpenedAt:        e.now(),
		}, false)
		e.session.Phase = domain.LotRTMPending
		e.emit(domain.EventRTMOpened, func(evt *domain.Event) {
			evt.Player = playerPtr(p)
			evt.RTM = &attempt
		})
		e.logger.Info("rtm window opened",
			"lot_id", p.ID, "previous_team", prev.Code,
			"amount", attempt.Amount.StringFixed(2), "window", e.cfg.RTMWindow)
		return Resolution{Player: p, Price: s.CurrentBid, RTM: &attempt, Pending: true}, nil
	}
	return e.sell(s.HighestBidderID, domain.AcquisitionBid, nil)
}

func (e *Engine) rtmEligible(p domain.Player) (domain.Team, bool) {
	if e.rtmSpent || !e.ledger.Rules().RTMEnabled {
		return domain.Team{}, false
	}
	if p.PreviousTeamID == "" || p.PreviousTeamID == e.session.HighestBidderID {
		return domain.Team{}, false
	}
	t, ok := e.ledger.Team(p.PreviousTeamID)
	if !ok || !t.RTMEnabled || t.RTMCards < 1 {
		return domain.Team{}, false
	}
	if err := e.ledger.CanAfford(p, t.ID, e.session.CurrentBid); err != nil {
		return domain.Team{}, false
	}
	return t, true
}

// MarkUnsold resolves an open lot that drew no bids.
func (e *Engine) MarkUnsold() (Resolution, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("mark unsold", domain.SessionActive); err != nil {
		return Resolution{}, err
	}
	s := e.session
	if s.Phase != domain.LotRevealed || s.BidCounter != 0 {
		return Resolution{}, fmt.Errorf("auction: mark unsold in phase %s with %d bids: %w", s.Phase, s.BidCounter, domain.ErrInvalidTransition)
	}
	p := e.registry.player(s.CurrentLotID)
	p.Status = domain.PlayerStatusUnsold
	e.undo = nil
	e.ledger.ForgetLast()

	e.session.Phase = domain.LotUnsold
	e.emit(domain.EventLotUnsold, func(evt *domain.Event) { evt.Player = playerPtr(*p) })
	e.logger.Info("lot unsold", "lot_id", p.ID, "player", p.Name)

	res := Resolution{Player: *p}
	res.Next = e.advance()
	return res, nil
}

// AcceptRTM lets the previous team match the winning bid.
func (e *Engine) AcceptRTM(teamID string, amount decimal.Decimal) (Resolution, error) {
	e.lock()
	defer e.unlock()
	a, err := e.rtm.pending()
	if err != nil {
		return Resolution{}, err
	}
	if teamID != a.PreviousTeamID {
		return Resolution{}, fmt.Errorf("auction: accept rtm: team %s is not the previous team: %w", teamID, domain.ErrForbidden)
	}
	if err := e.requireStatus("accept rtm", domain.SessionActive); err != nil {
		return Resolution{}, err
	}
	if !amount.Equal(a.Amount) {
		return Resolution{}, &BidError{Err: domain.ErrInvalidAmount, Expected: a.Amount, Counter: e.session.BidCounter}
	}
	p := *e.registry.player(a.LotID)
	if err := e.ledger.CanAfford(p, teamID, a.Amount); err != nil {
		return Resolution{}, fmt.Errorf("auction: accept rtm: %w", err)
	}
	if t, _ := e.ledger.Team(teamID); t.RTMCards < 1 {
		return Resolution{}, fmt.Errorf("auction: accept rtm: %s has no cards: %w", t.Code, domain.ErrInvalidState)
	}
	return e.closeRTM(domain.RTMOutcomeUsed, teamID, domain.AcquisitionRTM)
}

// DeclineRTM lets the previous team pass; the highest bidder wins.
func (e *Engine) DeclineRTM(teamID string) (Resolution, error) {
	e.lock()
	defer e.unlock()
	a, err := e.rtm.pending()
	if err != nil {
		return Resolution{}, err
	}
	if teamID != a.PreviousTeamID {
		return Resolution{}, fmt.Errorf("auction: decline rtm: team %s is not the previous team: %w", teamID, domain.ErrForbidden)
	}
	if err := e.requireStatus("decline rtm", domain.SessionActive); err != nil {
		return Resolution{}, err
	}
	return e.closeRTM(domain.RTMOutcomeDeclined, a.CompetingTeamID, domain.AcquisitionBid)
}

// OverrideRTM is the operator closing the window in the highest bidder's
// favour.
func (e *Engine) OverrideRTM() (Resolution, error) {
	e.lock()
	defer e.unlock()
	a, err := e.rtm.pending()
	if err != nil {
		return Resolution{}, err
	}
	if err := e.requireStatus("override rtm", domain.SessionActive); err != nil {
		return Resolution{}, err
	}
	return e.closeRTM(domain.RTMOutcomeOverridden, a.CompetingTeamID, domain.AcquisitionBid)
}

// RTMStatus reports the open window and its remaining time.
func (e *Engine) RTMStatus() domain.RTMStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rtm.status()
}

// RTMHistory returns every closed RTM attempt of the session.
func (e *Engine) RTMHistory() []domain.RTMAttempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rtm.attempts()
}

func (e *Engine) expireRTM(gen uint64) {
	e.lock()
	defer e.unlock()
	if !e.rtm.live(gen) {
		return
	}
	if _, err := e.closeRTM(domain.RTMOutcomeTimedOut, e.session.HighestBidderID, domain.AcquisitionBid); err != nil {
		e.logger.Error("rtm timeout resolution failed", "lot_id", e.session.CurrentLotID, "error", err)
	}
}

// closeRTM closes the window and sells the lot. Callers have verified the
// buyer can take the player, and nothing touches the ledger while the
// window is open, so the sale cannot fail after the window is closed.
func (e *Engine) closeRTM(outcome domain.RTMOutcome, teamID string, method domain.Acquisition) (Resolution, error) {
	attempt, err := e.rtm.close(outcome)
	if err != nil {
		return Resolution{}, err
	}
	e.session.Phase = domain.LotResolving
	e.emit(domain.EventRTMClosed, func(evt *domain.Event) { evt.RTM = &attempt })
	e.logger.Info("rtm window closed", "lot_id", attempt.LotID, "outcome", attempt.Outcome)

	res, err := e.sell(teamID, method, &attempt)
	if err != nil {
		e.session.Phase = domain.LotRevealed
		return Resolution{}, err
	}
	return res, nil
}

func (e *Engine) sell(teamID string, method domain.Acquisition, attempt *domain.RTMAttempt) (Resolution, error) {
	s := e.session
	p := e.registry.player(s.CurrentLotID)
	prior := *p

	team, err := e.ledger.CommitSale(prior, teamID, s.CurrentBid, method)
	if err != nil {
		return Resolution{}, fmt.Errorf("auction: sell %s: %w", prior.Name, err)
	}
	p.Status = domain.PlayerStatusSold
	p.TeamID = teamID
	p.SoldPrice = s.CurrentBid
	p.Acquisition = method

	e.undo = &undoPoint{
		player:  prior,
		session: s,
		lotBase: e.lotBase,
		optOuts: e.optOuts,
	}

	e.session.Phase = domain.LotResolved
	sold := *p
	e.emit(domain.EventLotSold, func(evt *domain.Event) {
		evt.Player = &sold
		evt.Teams = []domain.Team{team}
		evt.RTM = attempt
	})
	e.logger.Info("lot sold",
		"lot_id", sold.ID, "player", sold.Name, "team", team.Code,
		"amount", sold.SoldPrice.StringFixed(2), "method", method)

	res := Resolution{
		Player: sold,
		Team:   teamPtr(team),
		Price:  sold.SoldPrice,
		Method: method,
		RTM:    attempt,
	}
	if res.Next = e.advance(); res.Next != nil {
		e.undo.drawn = res.Next.ID
	}
	return res, nil
}

// advance clears the lot pointer and, with auto-advance on, reveals the
// next lot of the current set.
func (e *Engine) advance() *domain.Player {
	setID := e.session.CurrentSetID
	e.clearLot()
	if !e.cfg.AutoAdvance || setID == "" {
		return nil
	}
	p, err := e.draw(setID)
	if err != nil {
		return nil
	}
	e.reveal(p)
	return &p
}

// Undo reverses the most recent sale. It is available until a newer lot is
// resolved or drawn by hand; a lot auto-drawn by that sale is put back as
// long as it has not been bid on.
func (e *Engine) Undo() (domain.Player, error) {
	e.lock()
	defer e.unlock()
	if err := e.requireStatus("undo", domain.SessionActive); err != nil {
		return domain.Player{}, err
	}
	u := e.undo
	if u == nil {
		return domain.Player{}, fmt.Errorf("auction: undo: %w", domain.ErrNothingToUndo)
	}
	if d, ok := e.ledger.LastDelta(); !ok || d.PlayerID != u.player.ID {
		return domain.Player{}, fmt.Errorf("auction: undo: %w", domain.ErrNothingToUndo)
	}
	s := e.session
	var requeued []domain.Player
	switch {
	case s.CurrentLotID == "":
	case s.CurrentLotID == u.drawn && s.Phase == domain.LotRevealed && s.BidCounter == 0:
		e.registry.Unreveal(u.session.CurrentSetID, u.drawn)
		if back, ok := e.registry.Player(u.drawn); ok {
			requeued = append(requeued, back)
		}
	default:
		return domain.Player{}, fmt.Errorf("auction: undo: lot %s already in play: %w", s.CurrentLotID, domain.ErrNothingToUndo)
	}

	d, team, err := e.ledger.Undo()
	if err != nil {
		return domain.Player{}, err
	}
	p := e.registry.player(d.PlayerID)
	*p = u.player

	restored := u.session
	restored.ID = s.ID
	restored.Status = s.Status
	restored.PausedAt = s.PausedAt
	restored.Phase = domain.LotRevealed
	restored.GoingOnce, restored.GoingTwice = false, false
	e.session = restored
	e.lotBase = u.lotBase
	e.optOuts = u.optOuts
	// Back to before MarkSold: the RTM window may open again.
	e.rtmSpent = false
	e.undo = nil

	undone := *p
	e.emit(domain.EventSaleUndone, func(evt *domain.Event) {
		evt.Player = &undone
		evt.Players = requeued
		evt.Teams = []domain.Team{team}
		evt.Detail = map[string]any{"amount": d.Price.StringFixed(2), "method": d.Method}
	})
	e.logger.Info("sale undone", "lot_id", undone.ID, "team", team.Code, "amount", d.Price.StringFixed(2))
	return undone, nil
}

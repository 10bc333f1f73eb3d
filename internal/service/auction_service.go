// Package service wires the auction engine to callers and infrastructure:
// authorization and audit for commands, write-behind persistence, seeding,
// alerts, archiving and the single-room lease.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

// auditTimeout bounds the audit write that follows every command.
const auditTimeout = 3 * time.Second

var (
	operators = []domain.Role{domain.RoleAuctioneer, domain.RoleAdmin}
	admins    = []domain.Role{domain.RoleAdmin}
	teams     = []domain.Role{domain.RoleTeam}
)

// AuctionService is the typed command surface of the engine. Every method
// checks the caller's role before touching the engine and records operator
// commands in the audit log.
type AuctionService struct {
	engine  *auction.Engine
	audit   domain.AuditStore
	setSize int
	logger  *slog.Logger
}

// NewAuctionService creates an AuctionService. audit may be nil, in which
// case commands are only logged. setSize is the default group size for
// GenerateSets.
func NewAuctionService(engine *auction.Engine, audit domain.AuditStore, setSize int, logger *slog.Logger) *AuctionService {
	if setSize < 1 {
		setSize = 10
	}
	return &AuctionService{
		engine:  engine,
		audit:   audit,
		setSize: setSize,
		logger:  logger.With(slog.String("component", "auction_service")),
	}
}

// Engine exposes the underlying engine for read paths and subscriptions.
func (s *AuctionService) Engine() *auction.Engine {
	return s.engine
}

func authorize(actor domain.Actor, command string, roles ...domain.Role) error {
	if actor.Subject == "" {
		return fmt.Errorf("service: %s: %w", command, domain.ErrUnauthorized)
	}
	if !actor.Is(roles...) {
		return fmt.Errorf("service: %s as %s: %w", command, actor.Role, domain.ErrForbidden)
	}
	if actor.Role == domain.RoleTeam && actor.TeamID == "" {
		return fmt.Errorf("service: %s: team actor without team: %w", command, domain.ErrForbidden)
	}
	return nil
}

// record writes the audit entry for a command. Failures are logged only:
// the command has already committed.
func (s *AuctionService) record(ctx context.Context, actor domain.Actor, command string, err error, detail map[string]any) {
	outcome := "ok"
	switch {
	case err == nil:
	case domain.IsNoop(err):
		outcome = "noop"
	default:
		outcome = "rejected"
		if detail == nil {
			detail = map[string]any{}
		}
		detail["error"] = err.Error()
	}

	log := s.logger.With(
		slog.String("command", command),
		slog.String("subject", actor.Subject),
		slog.String("role", string(actor.Role)),
		slog.String("outcome", outcome),
	)
	if err != nil {
		log.DebugContext(ctx, "command rejected", slog.String("error", err.Error()))
	} else {
		log.InfoContext(ctx, "command applied")
	}

	if s.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if aerr := s.audit.Log(actx, domain.AuditEntry{
		Subject: actor.Subject,
		Role:    actor.Role,
		Command: command,
		Outcome: outcome,
		Detail:  detail,
	}); aerr != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("command", command),
			slog.String("error", aerr.Error()),
		)
	}
}

// ── Team commands ──

// PlaceBid submits a bid for the actor's own team. Bids are not audited;
// the bid history already records them.
func (s *AuctionService) PlaceBid(ctx context.Context, actor domain.Actor, req domain.BidRequest) (domain.BidRecord, error) {
	if err := authorize(actor, "place_bid", teams...); err != nil {
		return domain.BidRecord{}, err
	}
	if req.TeamID != "" && req.TeamID != actor.TeamID {
		return domain.BidRecord{}, fmt.Errorf("service: bid for team %s: %w", req.TeamID, domain.ErrForbidden)
	}
	req.TeamID = actor.TeamID
	rec, err := s.engine.PlaceBid(req)
	if err != nil {
		s.logger.DebugContext(ctx, "bid rejected",
			slog.String("team_id", req.TeamID),
			slog.String("lot_id", req.LotID),
			slog.String("amount", req.Amount.StringFixed(2)),
			slog.String("error", err.Error()),
		)
	}
	return rec, err
}

// SetOptOut marks the actor's team as not interested in a lot, or clears it.
func (s *AuctionService) SetOptOut(ctx context.Context, actor domain.Actor, lotID string, optedOut bool) error {
	if err := authorize(actor, "set_opt_out", teams...); err != nil {
		return err
	}
	return s.engine.SetOptOut(lotID, actor.TeamID, optedOut)
}

// AcceptRTM matches the highest bid for the actor's team.
func (s *AuctionService) AcceptRTM(ctx context.Context, actor domain.Actor, amount decimal.Decimal) (auction.Resolution, error) {
	if err := authorize(actor, "accept_rtm", teams...); err != nil {
		return auction.Resolution{}, err
	}
	res, err := s.engine.AcceptRTM(actor.TeamID, amount)
	s.record(ctx, actor, "accept_rtm", err, map[string]any{"amount": amount.StringFixed(2)})
	return res, err
}

// DeclineRTM passes on the RTM window for the actor's team.
func (s *AuctionService) DeclineRTM(ctx context.Context, actor domain.Actor) (auction.Resolution, error) {
	if err := authorize(actor, "decline_rtm", teams...); err != nil {
		return auction.Resolution{}, err
	}
	res, err := s.engine.DeclineRTM(actor.TeamID)
	s.record(ctx, actor, "decline_rtm", err, nil)
	return res, err
}

// ── Auctioneer commands ──

// GenerateSets partitions the pool. size <= 0 uses the configured default.
func (s *AuctionService) GenerateSets(ctx context.Context, actor domain.Actor, size int) ([]domain.LotSet, error) {
	if err := authorize(actor, "generate_sets", operators...); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.setSize
	}
	sets, err := s.engine.GenerateSets(size)
	s.record(ctx, actor, "generate_sets", err, map[string]any{"group_size": size, "sets": len(sets)})
	return sets, err
}

// PickSet chooses the next set at random.
func (s *AuctionService) PickSet(ctx context.Context, actor domain.Actor) (domain.LotSet, error) {
	if err := authorize(actor, "pick_set", operators...); err != nil {
		return domain.LotSet{}, err
	}
	set, err := s.engine.PickSet()
	s.record(ctx, actor, "pick_set", err, map[string]any{"set_id": set.ID})
	return set, err
}

// DrawLot reveals the next player of the current set.
func (s *AuctionService) DrawLot(ctx context.Context, actor domain.Actor) (domain.Player, error) {
	if err := authorize(actor, "draw_lot", operators...); err != nil {
		return domain.Player{}, err
	}
	p, err := s.engine.DrawLot()
	s.record(ctx, actor, "draw_lot", err, map[string]any{"player_id": p.ID})
	return p, err
}

// GoingOnce announces the first call.
func (s *AuctionService) GoingOnce(ctx context.Context, actor domain.Actor) error {
	if err := authorize(actor, "going_once", operators...); err != nil {
		return err
	}
	err := s.engine.GoingOnce()
	s.record(ctx, actor, "going_once", err, nil)
	return err
}

// GoingTwice announces the second call.
func (s *AuctionService) GoingTwice(ctx context.Context, actor domain.Actor) error {
	if err := authorize(actor, "going_twice", operators...); err != nil {
		return err
	}
	err := s.engine.GoingTwice()
	s.record(ctx, actor, "going_twice", err, nil)
	return err
}

// MarkSold resolves the lot to the highest bidder, possibly via RTM.
func (s *AuctionService) MarkSold(ctx context.Context, actor domain.Actor) (auction.Resolution, error) {
	if err := authorize(actor, "mark_sold", operators...); err != nil {
		return auction.Resolution{}, err
	}
	res, err := s.engine.MarkSold()
	s.record(ctx, actor, "mark_sold", err, resolutionDetail(res))
	return res, err
}

// MarkUnsold resolves a lot nobody bid on.
func (s *AuctionService) MarkUnsold(ctx context.Context, actor domain.Actor) (auction.Resolution, error) {
	if err := authorize(actor, "mark_unsold", operators...); err != nil {
		return auction.Resolution{}, err
	}
	res, err := s.engine.MarkUnsold()
	s.record(ctx, actor, "mark_unsold", err, resolutionDetail(res))
	return res, err
}

// OverrideRTM closes an open RTM window in favour of the highest bidder.
func (s *AuctionService) OverrideRTM(ctx context.Context, actor domain.Actor) (auction.Resolution, error) {
	if err := authorize(actor, "override_rtm", operators...); err != nil {
		return auction.Resolution{}, err
	}
	res, err := s.engine.OverrideRTM()
	s.record(ctx, actor, "override_rtm", err, resolutionDetail(res))
	return res, err
}

// Pause freezes bidding, resolution and the RTM countdown.
func (s *AuctionService) Pause(ctx context.Context, actor domain.Actor) error {
	if err := authorize(actor, "pause", operators...); err != nil {
		return err
	}
	err := s.engine.Pause()
	s.record(ctx, actor, "pause", err, nil)
	return err
}

// Resume lifts a pause.
func (s *AuctionService) Resume(ctx context.Context, actor domain.Actor) error {
	if err := authorize(actor, "resume", operators...); err != nil {
		return err
	}
	err := s.engine.Resume()
	s.record(ctx, actor, "resume", err, nil)
	return err
}

// Undo reverses the most recent sale.
func (s *AuctionService) Undo(ctx context.Context, actor domain.Actor) (domain.Player, error) {
	if err := authorize(actor, "undo", operators...); err != nil {
		return domain.Player{}, err
	}
	p, err := s.engine.Undo()
	s.record(ctx, actor, "undo", err, map[string]any{"player_id": p.ID})
	return p, err
}

// ── Admin commands ──

// Import loads the validated seed records.
func (s *AuctionService) Import(ctx context.Context, actor domain.Actor, seed domain.Seed) (auction.ImportResult, error) {
	if err := authorize(actor, "import", admins...); err != nil {
		return auction.ImportResult{}, err
	}
	res, err := s.engine.Import(seed)
	s.record(ctx, actor, "import", err, map[string]any{
		"teams": res.Teams, "players": res.Players, "retained": res.Retained,
	})
	return res, err
}

// RetainPlayer moves a pool player onto a team before the auction starts.
func (s *AuctionService) RetainPlayer(ctx context.Context, actor domain.Actor, playerID, teamCode string, price decimal.Decimal) (domain.Player, error) {
	if err := authorize(actor, "retain_player", admins...); err != nil {
		return domain.Player{}, err
	}
	p, _, err := s.engine.RetainPlayer(playerID, teamCode, price)
	s.record(ctx, actor, "retain_player", err, map[string]any{
		"player_id": playerID, "team_code": teamCode, "price": price.StringFixed(2),
	})
	return p, err
}

// ConfigureTeam changes one team's caps, cards or purse.
func (s *AuctionService) ConfigureTeam(ctx context.Context, actor domain.Actor, teamID string, cfg domain.TeamConfig) (domain.Team, error) {
	if err := authorize(actor, "configure_team", admins...); err != nil {
		return domain.Team{}, err
	}
	t, err := s.engine.ConfigureTeam(teamID, cfg)
	s.record(ctx, actor, "configure_team", err, map[string]any{"team_id": teamID, "config": cfg})
	return t, err
}

// UpdateRules changes the auction-wide defaults.
func (s *AuctionService) UpdateRules(ctx context.Context, actor domain.Actor, rules domain.Rules) (domain.Rules, error) {
	if err := authorize(actor, "update_rules", admins...); err != nil {
		return domain.Rules{}, err
	}
	out, err := s.engine.UpdateRules(rules)
	s.record(ctx, actor, "update_rules", err, map[string]any{"rules": rules})
	return out, err
}

// Complete ends the auction.
func (s *AuctionService) Complete(ctx context.Context, actor domain.Actor) (auction.CompletionSummary, error) {
	if err := authorize(actor, "complete", admins...); err != nil {
		return auction.CompletionSummary{}, err
	}
	sum, err := s.engine.Complete()
	s.record(ctx, actor, "complete", err, map[string]any{
		"sold": sum.Sold, "unsold": sum.Unsold, "retained": sum.Retained,
	})
	return sum, err
}

// StartNew prepares a fresh auction after completion.
func (s *AuctionService) StartNew(ctx context.Context, actor domain.Actor, opts auction.NewAuctionOptions) error {
	if err := authorize(actor, "start_new", admins...); err != nil {
		return err
	}
	err := s.engine.StartNew(opts)
	s.record(ctx, actor, "start_new", err, map[string]any{
		"keep_sold": opts.KeepSold, "keep_retained": opts.KeepRetained, "reset_teams": opts.ResetTeams,
	})
	return err
}

// Reset wipes every team, player and session record.
func (s *AuctionService) Reset(ctx context.Context, actor domain.Actor) error {
	if err := authorize(actor, "reset", admins...); err != nil {
		return err
	}
	s.engine.Reset()
	s.record(ctx, actor, "reset", nil, nil)
	return nil
}

// ── Reads ──

// Snapshot returns the display view. Any authenticated caller may read it.
func (s *AuctionService) Snapshot(actor domain.Actor) (auction.Snapshot, error) {
	if err := authorize(actor, "snapshot", readers...); err != nil {
		return auction.Snapshot{}, err
	}
	return s.engine.Snapshot(), nil
}

var readers = []domain.Role{domain.RoleAdmin, domain.RoleAuctioneer, domain.RoleTeam}

// Teams returns the ledger view of every team.
func (s *AuctionService) Teams(actor domain.Actor) ([]domain.Team, error) {
	if err := authorize(actor, "teams", readers...); err != nil {
		return nil, err
	}
	return s.engine.Teams(), nil
}

// Team returns one team.
func (s *AuctionService) Team(actor domain.Actor, id string) (domain.Team, error) {
	if err := authorize(actor, "team", readers...); err != nil {
		return domain.Team{}, err
	}
	t, ok := s.engine.Team(id)
	if !ok {
		return domain.Team{}, fmt.Errorf("service: team %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// Players returns every player in import order.
func (s *AuctionService) Players(actor domain.Actor) ([]domain.Player, error) {
	if err := authorize(actor, "players", readers...); err != nil {
		return nil, err
	}
	return s.engine.Players(), nil
}

// Sets returns the lot sets of the session.
func (s *AuctionService) Sets(actor domain.Actor) ([]domain.LotSet, error) {
	if err := authorize(actor, "sets", readers...); err != nil {
		return nil, err
	}
	return s.engine.Sets(), nil
}

// Bids returns the bid history of a lot, or of the session when lotID is
// empty.
func (s *AuctionService) Bids(actor domain.Actor, lotID string) ([]domain.BidRecord, error) {
	if err := authorize(actor, "bids", readers...); err != nil {
		return nil, err
	}
	return s.engine.Bids(lotID), nil
}

// RTMHistory returns every RTM attempt of the session.
func (s *AuctionService) RTMHistory(actor domain.Actor) ([]domain.RTMAttempt, error) {
	if err := authorize(actor, "rtm_history", readers...); err != nil {
		return nil, err
	}
	return s.engine.RTMHistory(), nil
}

// AuditLog lists recorded operator commands, newest first.
func (s *AuctionService) AuditLog(ctx context.Context, actor domain.Actor, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if err := authorize(actor, "audit_log", admins...); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	return s.audit.List(ctx, opts)
}

func resolutionDetail(res auction.Resolution) map[string]any {
	if res.Player.ID == "" {
		return nil
	}
	d := map[string]any{
		"player_id":   res.Player.ID,
		"price":       res.Price.StringFixed(2),
		"rtm_pending": res.Pending,
	}
	if res.Team != nil {
		d["team_id"] = res.Team.ID
	}
	if res.Method != "" {
		d["method"] = string(res.Method)
	}
	return d
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
)

// AuctionService is the command and read surface the auction handlers
// need. *service.AuctionService implements it.
type AuctionService interface {
	PlaceBid(ctx context.Context, actor domain.Actor, req domain.BidRequest) (domain.BidRecord, error)
	SetOptOut(ctx context.Context, actor domain.Actor, lotID string, optedOut bool) error
	AcceptRTM(ctx context.Context, actor domain.Actor, amount decimal.Decimal) (auction.Resolution, error)
	DeclineRTM(ctx context.Context, actor domain.Actor) (auction.Resolution, error)

	GenerateSets(ctx context.Context, actor domain.Actor, size int) ([]domain.LotSet, error)
	PickSet(ctx context.Context, actor domain.Actor) (domain.LotSet, error)
	DrawLot(ctx context.Context, actor domain.Actor) (domain.Player, error)
	GoingOnce(ctx context.Context, actor domain.Actor) error
	GoingTwice(ctx context.Context, actor domain.Actor) error
	MarkSold(ctx context.Context, actor domain.Actor) (auction.Resolution, error)
	MarkUnsold(ctx context.Context, actor domain.Actor) (auction.Resolution, error)
	OverrideRTM(ctx context.Context, actor domain.Actor) (auction.Resolution, error)
	Pause(ctx context.Context, actor domain.Actor) error
	Resume(ctx context.Context, actor domain.Actor) error
	Undo(ctx context.Context, actor domain.Actor) (domain.Player, error)

	Import(ctx context.Context, actor domain.Actor, seed domain.Seed) (auction.ImportResult, error)
	RetainPlayer(ctx context.Context, actor domain.Actor, playerID, teamCode string, price decimal.Decimal) (domain.Player, error)
	ConfigureTeam(ctx context.Context, actor domain.Actor, teamID string, cfg domain.TeamConfig) (domain.Team, error)
	UpdateRules(ctx context.Context, actor domain.Actor, rules domain.Rules) (domain.Rules, error)
	Complete(ctx context.Context, actor domain.Actor) (auction.CompletionSummary, error)
	StartNew(ctx context.Context, actor domain.Actor, opts auction.NewAuctionOptions) error
	Reset(ctx context.Context, actor domain.Actor) error

	Snapshot(actor domain.Actor) (auction.Snapshot, error)
	Teams(actor domain.Actor) ([]domain.Team, error)
	Team(actor domain.Actor, id string) (domain.Team, error)
	Players(actor domain.Actor) ([]domain.Player, error)
	Sets(actor domain.Actor) ([]domain.LotSet, error)
	Bids(actor domain.Actor, lotID string) ([]domain.BidRecord, error)
	RTMHistory(actor domain.Actor) ([]domain.RTMAttempt, error)
	AuditLog(ctx context.Context, actor domain.Actor, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AuctionHandler serves the live auction: display reads, team bidding and
// the auctioneer's floor commands.
type AuctionHandler struct {
	svc    AuctionService
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(svc AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{svc: svc, logger: logHandler(logger, "auction")}
}

// respond writes v, or the mapped error.
func (h *AuctionHandler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func statusOK() map[string]string { return map[string]string{"status": "ok"} }

// ── Reads ──

// Snapshot returns the whole display view.
// GET /api/auction
func (h *AuctionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(middleware.ActorFrom(r.Context()))
	h.respond(w, r, snap, err)
}

// ListBids returns the bid history of a lot (?lot_id=) or the session.
// GET /api/auction/bids
func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.svc.Bids(middleware.ActorFrom(r.Context()), r.URL.Query().Get("lot_id"))
	h.respond(w, r, map[string]any{"bids": bids}, err)
}

// ListSets returns every lot set.
// GET /api/auction/sets
func (h *AuctionHandler) ListSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.svc.Sets(middleware.ActorFrom(r.Context()))
	h.respond(w, r, map[string]any{"sets": sets}, err)
}

// ListRTM returns the RTM attempts of the session.
// GET /api/auction/rtm
func (h *AuctionHandler) ListRTM(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.svc.RTMHistory(middleware.ActorFrom(r.Context()))
	h.respond(w, r, map[string]any{"attempts": attempts}, err)
}

// ListPlayers returns every player.
// GET /api/players
func (h *AuctionHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.Players(middleware.ActorFrom(r.Context()))
	h.respond(w, r, map[string]any{"players": players}, err)
}

// ── Team commands ──

type bidRequest struct {
	LotID           string          `json:"lot_id"`
	Amount          decimal.Decimal `json:"amount"`
	ExpectedCounter int64           `json:"expected_counter"`
}

// PlaceBid submits the caller's team's bid.
// POST /api/auction/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := decodeBody(w, r, maxBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.LotID == "" {
		writeError(w, http.StatusBadRequest, "lot_id is required")
		return
	}
	rec, err := h.svc.PlaceBid(r.Context(), middleware.ActorFrom(r.Context()), domain.BidRequest{
		LotID:           req.LotID,
		Amount:          req.Amount,
		ExpectedCounter: req.ExpectedCounter,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// SetOptOut withdraws the caller's team from a lot, or rejoins it.
// PUT /api/auction/lots/{id}/opt-out
func (h *AuctionHandler) SetOptOut(w http.ResponseWriter, r *http.Request) {
	body := struct {
		OptedOut *bool `json:"opted_out"`
	}{}
	if err := decodeBody(w, r, maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	optedOut := true
	if body.OptedOut != nil {
		optedOut = *body.OptedOut
	}
	lotID := r.PathValue("id")
	err := h.svc.SetOptOut(r.Context(), middleware.ActorFrom(r.Context()), lotID, optedOut)
	h.respond(w, r, map[string]any{"lot_id": lotID, "opted_out": optedOut}, err)
}

// AcceptRTM matches the winning bid with an RTM card.
// POST /api/auction/rtm/accept
func (h *AuctionHandler) AcceptRTM(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Amount decimal.Decimal `json:"amount"`
	}{}
	if err := decodeBody(w, r, maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.AcceptRTM(r.Context(), middleware.ActorFrom(r.Context()), body.Amount)
	h.respond(w, r, res, err)
}

// DeclineRTM passes on the RTM window.
// POST /api/auction/rtm/decline
func (h *AuctionHandler) DeclineRTM(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeclineRTM(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, res, err)
}

// ── Floor commands ──

// GenerateSets partitions the pool into lot sets.
// POST /api/auction/sets
func (h *AuctionHandler) GenerateSets(w http.ResponseWriter, r *http.Request) {
	body := struct {
		GroupSize int `json:"group_size"`
	}{}
	if err := decodeBody(w, r, maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sets, err := h.svc.GenerateSets(r.Context(), middleware.ActorFrom(r.Context()), body.GroupSize)
	h.respond(w, r, map[string]any{"sets": sets}, err)
}

// PickSet makes a random unplayed set current.
// POST /api/auction/sets/pick
func (h *AuctionHandler) PickSet(w http.ResponseWriter, r *http.Request) {
	set, err := h.svc.PickSet(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, set, err)
}

// DrawLot reveals the next lot.
// POST /api/auction/draw
func (h *AuctionHandler) DrawLot(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.DrawLot(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, p, err)
}

// GoingOnce escalates the open lot.
// POST /api/auction/going-once
func (h *AuctionHandler) GoingOnce(w http.ResponseWriter, r *http.Request) {
	err := h.svc.GoingOnce(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, statusOK(), err)
}

// GoingTwice escalates the open lot again.
// POST /api/auction/going-twice
func (h *AuctionHandler) GoingTwice(w http.ResponseWriter, r *http.Request) {
	err := h.svc.GoingTwice(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, statusOK(), err)
}

// MarkSold sells to the highest bidder or opens an RTM window.
// POST /api/auction/sold
func (h *AuctionHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkSold(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, res, err)
}

// MarkUnsold closes a lot that drew no bids.
// POST /api/auction/unsold
func (h *AuctionHandler) MarkUnsold(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkUnsold(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, res, err)
}

// OverrideRTM closes the RTM window for the highest bidder.
// POST /api/auction/rtm/override
func (h *AuctionHandler) OverrideRTM(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.OverrideRTM(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, res, err)
}

// Pause freezes the auction.
// POST /api/auction/pause
func (h *AuctionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Pause(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, statusOK(), err)
}

// Resume lifts a pause.
// POST /api/auction/resume
func (h *AuctionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Resume(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, statusOK(), err)
}

// Undo reverses the last sale.
// POST /api/auction/undo
func (h *AuctionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Undo(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, p, err)
}

// ── Administration ──

// Complete ends the auction.
// POST /api/auction/complete
func (h *AuctionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Complete(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, sum, err)
}

// StartNew prepares a fresh auction after completion.
// POST /api/auction/start-new
func (h *AuctionHandler) StartNew(w http.ResponseWriter, r *http.Request) {
	var opts auction.NewAuctionOptions
	if err := decodeBody(w, r, maxBody, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.svc.StartNew(r.Context(), middleware.ActorFrom(r.Context()), opts)
	h.respond(w, r, statusOK(), err)
}

// Reset discards everything.
// POST /api/auction/reset
func (h *AuctionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Reset(r.Context(), middleware.ActorFrom(r.Context()))
	h.respond(w, r, statusOK(), err)
}

// UpdateRules replaces the auction-wide defaults.
// PUT /api/auction/rules
func (h *AuctionHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var rules domain.Rules
	if err := decodeBody(w, r, maxBody, &rules); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	got, err := h.svc.UpdateRules(r.Context(), middleware.ActorFrom(r.Context()), rules)
	h.respond(w, r, got, err)
}

// Import loads teams and players.
// POST /api/import
func (h *AuctionHandler) Import(w http.ResponseWriter, r *http.Request) {
	var seed domain.Seed
	if err := decodeBody(w, r, importMaxBody, &seed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Import(r.Context(), middleware.ActorFrom(r.Context()), seed)
	h.respond(w, r, res, err)
}

// RetainPlayer assigns a pool player to a team before bidding opens. An
// omitted price retains at the base price.
// POST /api/players/{id}/retain
func (h *AuctionHandler) RetainPlayer(w http.ResponseWriter, r *http.Request) {
	body := struct {
		TeamCode string          `json:"team_code"`
		Price    decimal.Decimal `json:"price"`
	}{}
	if err := decodeBody(w, r, maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.TeamCode == "" {
		writeError(w, http.StatusBadRequest, "team_code is required")
		return
	}
	p, err := h.svc.RetainPlayer(r.Context(), middleware.ActorFrom(r.Context()), r.PathValue("id"), body.TeamCode, body.Price)
	h.respond(w, r, p, err)
}

// ListAudit returns recorded operator commands.
// GET /api/audit?limit=50&offset=0
func (h *AuctionHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.AuditLog(r.Context(), middleware.ActorFrom(r.Context()), parseListOpts(r))
	h.respond(w, r, map[string]any{"entries": entries}, err)
}

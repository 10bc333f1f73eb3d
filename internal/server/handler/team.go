package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
)

// TeamHandler serves the ledger view and per-team configuration.
type TeamHandler struct {
	svc    AuctionService
	logger *slog.Logger
}

// NewTeamHandler creates a TeamHandler.
func NewTeamHandler(svc AuctionService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{svc: svc, logger: logHandler(logger, "team")}
}

// ListTeams returns every team with purse and roster counts.
// GET /api/teams
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.svc.Teams(middleware.ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// GetTeam returns one team.
// GET /api/teams/{id}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.svc.Team(middleware.ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// ConfigureTeam applies purse, RTM and cap overrides. Omitted fields keep
// their current value.
// PUT /api/teams/{id}/config
func (h *TeamHandler) ConfigureTeam(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TeamConfig
	if err := decodeBody(w, r, maxBody, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	team, err := h.svc.ConfigureTeam(r.Context(), middleware.ActorFrom(r.Context()), r.PathValue("id"), cfg)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PlayerRecord is a validated player row from the bulk-import collaborator.
type PlayerRecord struct {
	ID               string          `json:"id,omitempty"`
	Name             string          `json:"name"`
	Category         Category        `json:"category"`
	Country          Country         `json:"country"`
	BasePrice        decimal.Decimal `json:"base_price"`
	PreviousTeamCode string          `json:"previous_team_code,omitempty"`
}

// RetainedRecord is a validated retained-player row.
type RetainedRecord struct {
	PlayerRecord
	TeamCode      string          `json:"team_code"`
	RetainedPrice decimal.Decimal `json:"retained_price"`
}

// TeamRecord identifies a franchise taking part in the auction.
type TeamRecord struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Seed is everything needed to prime the registry and the ledger.
type Seed struct {
	Teams    []TeamRecord     `json:"teams"`
	Players  []PlayerRecord   `json:"players"`
	Retained []RetainedRecord `json:"retained"`
}

// SeedSource loads validated import records.
type SeedSource interface {
	LoadSeed(ctx context.Context) (Seed, error)
}

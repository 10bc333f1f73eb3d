package domain

import "github.com/shopspring/decimal"

// Team is a franchise's ledger entry.
type Team struct {
	ID             string           `json:"id"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Purse          decimal.Decimal  `json:"purse"`
	StartingPurse  decimal.Decimal  `json:"starting_purse"`
	SquadSize      int              `json:"squad_size"`
	CategoryCounts map[Category]int `json:"category_counts"`
	OverseasCount  int              `json:"overseas_count"`
	RTMCards       int              `json:"rtm_cards"`
	RTMEnabled     bool             `json:"rtm_enabled"`

	// Zero means the global default applies.
	MaxSquadOverride    int `json:"max_squad_override,omitempty"`
	MaxOverseasOverride int `json:"max_overseas_override,omitempty"`
}

// Clone returns a deep copy so callers cannot alias the category map.
func (t Team) Clone() Team {
	out := t
	out.CategoryCounts = make(map[Category]int, len(t.CategoryCounts))
	for k, v := range t.CategoryCounts {
		out.CategoryCounts[k] = v
	}
	return out
}

// MaxSquad returns the effective squad cap for the team.
func (t Team) MaxSquad(def int) int {
	if t.MaxSquadOverride > 0 {
		return t.MaxSquadOverride
	}
	return def
}

// MaxOverseas returns the effective overseas cap for the team.
func (t Team) MaxOverseas(def int) int {
	if t.MaxOverseasOverride > 0 {
		return t.MaxOverseasOverride
	}
	return def
}

// TeamConfig holds the operator-adjustable per-team settings.
type TeamConfig struct {
	StartingPurse       *decimal.Decimal `json:"starting_purse,omitempty"`
	RTMCards            *int             `json:"rtm_cards,omitempty"`
	RTMEnabled          *bool            `json:"rtm_enabled,omitempty"`
	MaxSquadOverride    *int             `json:"max_squad_override,omitempty"`
	MaxOverseasOverride *int             `json:"max_overseas_override,omitempty"`
}

// Rules are the auction-wide defaults.
type Rules struct {
	RTMEnabled      bool            `json:"rtm_enabled"`
	DefaultRTMCards int             `json:"default_rtm_cards"`
	DefaultPurse    decimal.Decimal `json:"default_purse"`
	MaxSquad        int             `json:"max_squad"`
	MaxOverseas     int             `json:"max_overseas"`
}

package domain

import "github.com/shopspring/decimal"

// Category is a player's playing role.
type Category string

const (
	CategoryBatter       Category = "batter"
	CategoryBowler       Category = "bowler"
	CategoryAllrounder   Category = "allrounder"
	CategoryWicketkeeper Category = "wicketkeeper"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBatter, CategoryBowler, CategoryAllrounder, CategoryWicketkeeper:
		return true
	}
	return false
}

// Country distinguishes domestic players from overseas players, which count
// against the overseas cap.
type Country string

const (
	CountryDomestic Country = "domestic"
	CountryOverseas Country = "overseas"
)

// PlayerStatus tracks the player lifecycle.
type PlayerStatus string

const (
	PlayerStatusPool      PlayerStatus = "pool"
	PlayerStatusRevealed  PlayerStatus = "revealed"
	PlayerStatusSold      PlayerStatus = "sold"
	PlayerStatusUnsold    PlayerStatus = "unsold"
	PlayerStatusRetained  PlayerStatus = "retained"
	PlayerStatusDiscarded PlayerStatus = "discarded"
)

// Acquisition records how a team obtained a player.
type Acquisition string

const (
	AcquisitionBid       Acquisition = "bid"
	AcquisitionRTM       Acquisition = "rtm"
	AcquisitionRetention Acquisition = "retention"
)

// Player is a single auctionable player.
type Player struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       Category        `json:"category"`
	Country        Country         `json:"country"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Status         PlayerStatus    `json:"status"`
	TeamID         string          `json:"team_id,omitempty"`
	SoldPrice      decimal.Decimal `json:"sold_price"`
	Acquisition    Acquisition     `json:"acquisition,omitempty"`
	PreviousTeamID string          `json:"previous_team_id,omitempty"`
}

// Overseas reports whether the player counts against the overseas cap.
func (p Player) Overseas() bool {
	return p.Country == CountryOverseas
}

// Owned reports whether the player currently belongs to a team.
func (p Player) Owned() bool {
	return p.Status == PlayerStatusSold || p.Status == PlayerStatusRetained
}

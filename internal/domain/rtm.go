package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RTMOutcome is how an RTM window closed.
type RTMOutcome string

const (
	RTMOutcomeUsed       RTMOutcome = "used"
	RTMOutcomeDeclined   RTMOutcome = "declined"
	RTMOutcomeTimedOut   RTMOutcome = "timed_out"
	RTMOutcomeOverridden RTMOutcome = "overridden"
)

// RTMAttempt records one Right-to-Match window. Outcome is empty while the
// window is open.
type RTMAttempt struct {
	ID              string          `json:"id"`
	LotID           string          `json:"lot_id"`
	PreviousTeamID  string          `json:"previous_team_id"`
	CompetingTeamID string          `json:"competing_team_id"`
	Amount          decimal.Decimal `json:"amount"`
	OpenedAt        time.Time       `json:"opened_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	Outcome         RTMOutcome      `json:"outcome,omitempty"`
}

// RTMStatus is the display view of the RTM window.
type RTMStatus struct {
	Open      bool          `json:"open"`
	Paused    bool          `json:"paused"`
	Attempt   *RTMAttempt   `json:"attempt,omitempty"`
	Remaining time.Duration `json:"remaining"`
}

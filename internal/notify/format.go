package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// TeamNames resolves a team ID to a display name. A nil TeamNames prints IDs.
type TeamNames func(teamID string) string

func (f TeamNames) name(id string) string {
	if f == nil || id == "" {
		return id
	}
	if n := f(id); n != "" {
		return n
	}
	return id
}

// Format renders the events worth announcing. ok is false for everything
// else (bids, escalation, setup).
func Format(evt domain.Event, names TeamNames) (Message, bool) {
	switch evt.Type {
	case domain.EventLotSold:
		if evt.Player == nil {
			return Message{}, false
		}
		p := evt.Player
		how := "bid"
		if p.Acquisition == domain.AcquisitionRTM {
			how = "right to match"
		}
		return Message{
			Title: fmt.Sprintf("SOLD: %s", p.Name),
			Body: fmt.Sprintf("%s (%s) to %s for %s Cr via %s",
				p.Name, p.Category, names.name(p.TeamID), p.SoldPrice.StringFixed(2), how),
			Level: LevelSuccess,
		}, true

	case domain.EventLotUnsold:
		if evt.Player == nil {
			return Message{}, false
		}
		return Message{
			Title: fmt.Sprintf("UNSOLD: %s", evt.Player.Name),
			Body:  fmt.Sprintf("No bids at base price %s Cr", evt.Player.BasePrice.StringFixed(2)),
		}, true

	case domain.EventRTMClosed:
		if evt.RTM == nil {
			return Message{}, false
		}
		a := evt.RTM
		var body string
		switch a.Outcome {
		case domain.RTMOutcomeUsed:
			body = fmt.Sprintf("%s matched %s's bid of %s Cr", names.name(a.PreviousTeamID), names.name(a.CompetingTeamID), a.Amount.StringFixed(2))
		case domain.RTMOutcomeDeclined:
			body = fmt.Sprintf("%s declined to match %s Cr", names.name(a.PreviousTeamID), a.Amount.StringFixed(2))
		case domain.RTMOutcomeTimedOut:
			body = fmt.Sprintf("%s let the window expire", names.name(a.PreviousTeamID))
		case domain.RTMOutcomeOverridden:
			body = "Window closed by the auctioneer"
		default:
			return Message{}, false
		}
		return Message{Title: "Right to match", Body: body}, true

	case domain.EventSaleUndone:
		if evt.Player == nil {
			return Message{}, false
		}
		return Message{
			Title: fmt.Sprintf("SALE REVERSED: %s", evt.Player.Name),
			Body:  "The last sale was undone and the lot is back on the block",
			Level: LevelWarn,
		}, true

	case domain.EventPaused:
		return Message{Title: "Auction paused", Level: LevelWarn}, true

	case domain.EventResumed:
		return Message{Title: "Auction resumed"}, true

	case domain.EventAuctionCompleted:
		var b strings.Builder
		for _, t := range evt.Teams {
			fmt.Fprintf(&b, "%s: %d players, %s Cr left\n", t.Code, t.SquadSize, t.Purse.StringFixed(2))
		}
		return Message{
			Title: "Auction completed",
			Body:  strings.TrimRight(b.String(), "\n"),
			Level: LevelSuccess,
		}, true
	}
	return Message{}, false
}

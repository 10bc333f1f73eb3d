package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Config holds the engine's tunables.
type Config struct {
	Rules domain.Rules

	// RTMWindow is how long the previous team has to match.
	RTMWindow time.Duration

	// AutoAdvance draws the next lot of the current set after every
	// resolution.
	AutoAdvance bool

	// Seed fixes the lot ordering. Zero picks a time-based seed.
	Seed uint64

	// HistoryWindow bounds the bid history returned by Snapshot.
	HistoryWindow int

	Clock Clock
}

// DefaultConfig returns the standard auction rules:
// 100 Cr purse, 2 RTM cards, 25-man squads with at most 8 overseas players
// and a 30 second RTM window.
func DefaultConfig() Config {
	return Config{
		Rules: domain.Rules{
			RTMEnabled:      true,
			DefaultRTMCards: 2,
			DefaultPurse:    decimal.NewFromInt(100),
			MaxSquad:        25,
			MaxOverseas:     8,
		},
		RTMWindow:     30 * time.Second,
		AutoAdvance:   true,
		HistoryWindow: 50,
		Clock:         SystemClock(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RTMWindow <= 0 {
		c.RTMWindow = def.RTMWindow
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = def.HistoryWindow
	}
	if c.Rules.MaxSquad <= 0 {
		c.Rules.MaxSquad = def.Rules.MaxSquad
	}
	if c.Rules.MaxOverseas <= 0 {
		c.Rules.MaxOverseas = def.Rules.MaxOverseas
	}
	if c.Rules.DefaultPurse.IsZero() {
		c.Rules.DefaultPurse = def.Rules.DefaultPurse
	}
	if c.Rules.DefaultRTMCards < 0 {
		c.Rules.DefaultRTMCards = 0
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	return c
}

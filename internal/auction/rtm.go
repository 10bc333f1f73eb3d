package auction

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

type rtmWindow struct {
	attempt   domain.RTMAttempt
	gen       uint64
	remaining time.Duration
	startedAt time.Time
	timer     Timer
}

// rtmCoordinator runs the single Right-to-Match window. Every timer carries
// the generation it was armed with; a fire whose generation no longer
// matches the open window is ignored, so a window closes exactly once no
// matter how a timeout races an accept or decline. Guarded by the engine's
// session lock.
type rtmCoordinator struct {
	clock    Clock
	window   time.Duration
	gen      uint64
	current  *rtmWindow
	history  []domain.RTMAttempt
	onExpire func(gen uint64)
}

func newRTMCoordinator(clock Clock, window time.Duration, onExpire func(uint64)) *rtmCoordinator {
	return &rtmCoordinator{clock: clock, window: window, onExpire: onExpire}
}

func (c *rtmCoordinator) open(attempt domain.RTMAttempt, paused bool) domain.RTMAttempt {
	c.gen++
	w := &rtmWindow{attempt: attempt, gen: c.gen, remaining: c.window}
	c.current = w
	if !paused {
		c.arm(w)
	}
	return w.attempt
}

func (c *rtmCoordinator) arm(w *rtmWindow) {
	gen := w.gen
	w.startedAt = c.clock.Now()
	w.timer = c.clock.AfterFunc(w.remaining, func() { c.onExpire(gen) })
}

func (c *rtmCoordinator) isOpen() bool { return c.current != nil }

// live reports whether gen belongs to the open window's running timer.
func (c *rtmCoordinator) live(gen uint64) bool {
	return c.current != nil && c.current.timer != nil && c.current.gen == gen
}

func (c *rtmCoordinator) pending() (domain.RTMAttempt, error) {
	if c.current == nil {
		return domain.RTMAttempt{}, fmt.Errorf("rtm: %w", domain.ErrWindowClosed)
	}
	return c.current.attempt, nil
}

// pause freezes the countdown and invalidates any fire already in flight.
func (c *rtmCoordinator) pause() {
	w := c.current
	if w == nil || w.timer == nil {
		return
	}
	w.timer.Stop()
	w.timer = nil
	w.remaining -= c.clock.Now().Sub(w.startedAt)
	if w.remaining < 0 {
		w.remaining = 0
	}
	c.gen++
	w.gen = c.gen
}

func (c *rtmCoordinator) resume() {
	if w := c.current; w != nil && w.timer == nil {
		c.arm(w)
	}
}

func (c *rtmCoordinator) close(outcome domain.RTMOutcome) (domain.RTMAttempt, error) {
	w := c.current
	if w == nil {
		return domain.RTMAttempt{}, fmt.Errorf("rtm: close: %w", domain.ErrWindowClosed)
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	c.current = nil
	c.gen++
	now := c.clock.Now()
	w.attempt.ClosedAt = &now
	w.attempt.Outcome = outcome
	c.history = append(c.history, w.attempt)
	return w.attempt, nil
}

func (c *rtmCoordinator) status() domain.RTMStatus {
	w := c.current
	if w == nil {
		return domain.RTMStatus{}
	}
	a := w.attempt
	st := domain.RTMStatus{Open: true, Attempt: &a, Remaining: w.remaining, Paused: w.timer == nil}
	if w.timer != nil {
		st.Remaining = w.remaining - c.clock.Now().Sub(w.startedAt)
		if st.Remaining < 0 {
			st.Remaining = 0
		}
	}
	return st
}

func (c *rtmCoordinator) attempts() []domain.RTMAttempt {
	return append([]domain.RTMAttempt(nil), c.history...)
}

// reset abandons any open window without recording it.
func (c *rtmCoordinator) reset() {
	if c.current != nil && c.current.timer != nil {
		c.current.timer.Stop()
	}
	c.current = nil
	c.gen++
	c.history = nil
}

package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrLockHeld          = errors.New("lock already held")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidAmount     = errors.New("invalid bid amount")
	ErrStaleBid          = errors.New("stale bid")
	ErrPaused            = errors.New("auction paused")
	ErrNotBiddable       = errors.New("lot not open for bidding")
	ErrSelfOptedOut      = errors.New("team opted out of lot")
	ErrAlreadyHighest    = errors.New("team already holds the highest bid")
	ErrCapExceeded       = errors.New("roster cap exceeded")
	ErrInsufficientPurse = errors.New("insufficient purse")
	ErrWindowClosed      = errors.New("rtm window closed")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrExhausted         = errors.New("exhausted")
)

// IsNoop reports whether err is one of the idempotency guards that callers
// surface as a no-op rather than a failure.
func IsNoop(err error) bool {
	return errors.Is(err, ErrWindowClosed) ||
		errors.Is(err, ErrNothingToUndo) ||
		errors.Is(err, ErrExhausted)
}

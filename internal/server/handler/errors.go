package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

// errorBody is the JSON shape of every rejected command.
type errorBody struct {
	Error string `json:"error"`
	// Noop marks a guard refusal: the command had nothing to act on.
	Noop bool `json:"noop,omitempty"`
	// ExpectedAmount and BidCounter tell a bidder what to resubmit.
	ExpectedAmount string `json:"expected_amount,omitempty"`
	BidCounter     *int64 `json:"bid_counter,omitempty"`
}

// statusFor maps domain errors to HTTP status codes. ok is false for
// errors that are not the caller's fault.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, true
	case errors.Is(err, domain.ErrPaused):
		return http.StatusLocked, true
	case errors.Is(err, domain.ErrCapExceeded), errors.Is(err, domain.ErrInsufficientPurse):
		return http.StatusUnprocessableEntity, true
	case domain.IsNoop(err),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrStaleBid),
		errors.Is(err, domain.ErrNotBiddable),
		errors.Is(err, domain.ErrSelfOptedOut),
		errors.Is(err, domain.ErrAlreadyHighest),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, true
	}
	return http.StatusInternalServerError, false
}

// writeDomainError renders err for the client. Unexpected errors are
// logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, ok := statusFor(err)
	if !ok {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "internal server error")
		return
	}

	body := errorBody{Error: err.Error(), Noop: domain.IsNoop(err)}
	var bidErr *auction.BidError
	if errors.As(err, &bidErr) {
		body.ExpectedAmount = bidErr.Expected.StringFixed(2)
		counter := bidErr.Counter
		body.BidCounter = &counter
	}
	writeJSON(w, status, body)
}

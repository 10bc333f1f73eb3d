package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("team zz: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrInvalidArgument, http.StatusBadRequest},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{&auction.BidError{Err: domain.ErrPaused}, http.StatusLocked},
		{domain.ErrCapExceeded, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientPurse, http.StatusUnprocessableEntity},
		{domain.ErrNothingToUndo, http.StatusConflict},
		{domain.ErrWindowClosed, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{&auction.BidError{Err: domain.ErrStaleBid}, http.StatusConflict},
		{&auction.BidError{Err: domain.ErrInvalidAmount}, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
		{errors.New("pool closed"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, ok := statusFor(tt.err)
			check.Equal(t, tt.want, got)
			check.Equal(t, tt.want != http.StatusInternalServerError, ok)
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/auction/bids", nil)

	t.Run("bid rejection carries retry hints", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeDomainError(rec, req, logger, &auction.BidError{
			Err:      domain.ErrStaleBid,
			Expected: decimal.RequireFromString("1.2"),
			Counter:  0,
		})
		check.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		check.Equal(t, "1.20", body["expected_amount"])
		check.Equal[any](t, float64(0), body["bid_counter"])
		_, noop := body["noop"]
		check.False(t, noop)
	})

	t.Run("guard refusal is flagged noop", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeDomainError(rec, req, logger, fmt.Errorf("undo: %w", domain.ErrNothingToUndo))
		check.Equal(t, http.StatusConflict, rec.Code)
		check.Equal(t, `{"error":"undo: nothing to undo","noop":true}`, rec.Body.String())
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeDomainError(rec, req, logger, errors.New("dial tcp 10.0.0.5:5432: refused"))
		check.Equal(t, http.StatusInternalServerError, rec.Code)
		check.Equal(t, `{"error":"internal server error"}`, rec.Body.String())
	})
}

package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

type countLimiter struct {
	counts map[string]int
	err    error
}

func (c *countLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.counts[key]++
	return c.counts[key] <= limit, nil
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	send := func(h http.Handler, actor domain.Actor, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auction/bids", nil)
		req.RemoteAddr = ip + ":5000"
		req = req.WithContext(WithActor(req.Context(), actor))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	lim := &countLimiter{counts: map[string]int{}}
	h := RateLimit(lim, "bid", 1, time.Second, logger)(ok)
	phone := domain.Actor{Subject: "phone", Role: domain.RoleTeam, TeamID: "mi"}
	tablet := domain.Actor{Subject: "tablet", Role: domain.RoleTeam, TeamID: "mi"}

	check.Equal(t, http.StatusOK, send(h, phone, "10.0.0.1"))
	// Same team from another device shares the budget.
	check.Equal(t, http.StatusTooManyRequests, send(h, tablet, "10.0.0.2"))
	check.Equal(t, http.StatusOK, send(h, domain.Actor{}, "10.0.0.3"))
	check.Equal(t, 2, lim.counts["bid:team:mi"])
	check.Equal(t, 1, lim.counts["bid:ip:10.0.0.3"])

	// Limiter outages fail open.
	down := RateLimit(&countLimiter{err: errors.New("redis down")}, "bid", 1, time.Second, logger)(ok)
	check.Equal(t, http.StatusOK, send(down, phone, "10.0.0.1"))

	// Disabled limits pass through untouched.
	check.Equal(t, http.StatusOK, send(RateLimit(nil, "bid", 1, time.Second, logger)(ok), phone, "10.0.0.1"))
}

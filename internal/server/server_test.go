package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/cache/memory"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/handler"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
	"github.com/alanyoungcy/auctiond/internal/service"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	testIssuer = "auction-identity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := quietLogger()
	cfg := auction.DefaultConfig()
	cfg.Seed = 7
	cfg.AutoAdvance = false
	engine := auction.New(cfg, logger)
	t.Cleanup(engine.Close)

	svc := service.NewAuctionService(engine, nil, 10, logger)
	srv := NewServer(Config{
		Port:          0,
		BidRateLimit:  3,
		BidRateWindow: time.Minute,
	}, Handlers{
		Health:  handler.NewHealthHandler("standalone", nil, logger),
		Auction: handler.NewAuctionHandler(svc, logger),
		Teams:   handler.NewTeamHandler(svc, logger),
	}, Deps{
		Auth:    middleware.NewAuthenticator(testSecret, testIssuer, nil),
		Limiter: memory.NewRateLimiter(time.Minute),
	}, logger)
	return srv.Handler()
}

func token(t *testing.T, sub string, role domain.Role, teamID string) string {
	t.Helper()
	claims := middleware.Claims{
		Role:   role,
		TeamID: teamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

type call struct {
	method string
	path   string
	token  string
	body   any
	key    string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		assert.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.key != "" {
		req.Header.Set(middleware.IdempotencyHeader, c.key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

var testSeed = domain.Seed{
	Teams: []domain.TeamRecord{
		{ID: "csk", Code: "CSK", Name: "Chennai"},
		{ID: "mi", Code: "MI", Name: "Mumbai"},
	},
	Players: []domain.PlayerRecord{
		{ID: "p1", Name: "Opener", Category: domain.CategoryBatter, BasePrice: decimal.RequireFromString("2.00")},
		{ID: "p2", Name: "Seamer", Category: domain.CategoryBowler, BasePrice: decimal.RequireFromString("0.50")},
	},
}

// openLot imports the seed and reveals a lot, returning it.
func openLot(t *testing.T, h http.Handler, admin string) domain.Player {
	t.Helper()
	for _, c := range []call{
		{method: http.MethodPost, path: "/api/import", token: admin, body: testSeed},
		{method: http.MethodPost, path: "/api/auction/sets", token: admin, body: map[string]int{"group_size": 10}},
		{method: http.MethodPost, path: "/api/auction/sets/pick", token: admin},
	} {
		rec := do(t, h, c)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, call{method: http.MethodPost, path: "/api/auction/draw", token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)
	return decode[domain.Player](t, rec)
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, call{method: http.MethodGet, path: "/api/health"})
	check.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	check.Equal(t, "ok", body["status"])
	check.Equal(t, "standalone", body["mode"])
}

func TestServer_Identity(t *testing.T) {
	h := newTestServer(t)
	expired := func() string {
		claims := middleware.Claims{Role: domain.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Subject: "root", Issuer: testIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		assert.NoError(t, err)
		return s
	}()

	tests := []struct {
		name  string
		token string
		path  string
		want  int
	}{
		{name: "anonymous read", path: "/api/auction", want: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", path: "/api/auction", want: http.StatusUnauthorized},
		{name: "expired token", token: expired, path: "/api/auction", want: http.StatusUnauthorized},
		{name: "team reads snapshot", token: token(t, "mi-owner", domain.RoleTeam, "mi"), path: "/api/auction", want: http.StatusOK},
		{name: "team reads audit", token: token(t, "mi-owner", domain.RoleTeam, "mi"), path: "/api/audit", want: http.StatusForbidden},
		{name: "admin reads audit", token: token(t, "root", domain.RoleAdmin, ""), path: "/api/audit", want: http.StatusOK},
		{name: "unknown team", token: token(t, "root", domain.RoleAdmin, ""), path: "/api/teams/zz", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, call{method: http.MethodGet, path: tt.path, token: tt.token})
			check.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_BiddingFlow(t *testing.T) {
	h := newTestServer(t)
	admin := token(t, "root", domain.RoleAdmin, "")
	mi := token(t, "mi-owner", domain.RoleTeam, "mi")
	csk := token(t, "csk-owner", domain.RoleTeam, "csk")
	lot := openLot(t, h, admin)

	// Teams cannot run the floor.
	rec := do(t, h, call{method: http.MethodPost, path: "/api/auction/sold", token: mi})
	check.Equal(t, http.StatusForbidden, rec.Code)

	first := map[string]any{"lot_id": lot.ID, "amount": lot.BasePrice.StringFixed(2), "expected_counter": 0}
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: mi, body: first, key: "bid-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[domain.BidRecord](t, rec)
	check.Equal(t, "mi", placed.TeamID)
	check.Equal(t, int64(1), placed.Counter)

	// A retry with the same key replays the first response.
	again := do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: mi, body: first, key: "bid-1"})
	check.Equal(t, http.StatusCreated, again.Code)
	check.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	check.Equal(t, rec.Body.String(), again.Body.String())

	// CSK raced on the same counter and lost.
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: csk, body: first})
	check.Equal(t, http.StatusConflict, rec.Code)
	rejected := decode[map[string]any](t, rec)
	check.Equal[any](t, float64(1), rejected["bid_counter"])
	next := domain.NextBid(lot.BasePrice, lot.BasePrice).StringFixed(2)
	check.Equal[any](t, next, rejected["expected_amount"])

	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/pause", token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: csk,
		body: map[string]any{"lot_id": lot.ID, "amount": next, "expected_counter": 1}})
	check.Equal(t, http.StatusLocked, rec.Code)
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/resume", token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/sold", token: admin})
	assert.Equal(t, http.StatusOK, rec.Code)
	res := decode[auction.Resolution](t, rec)
	check.Equal(t, lot.ID, res.Player.ID)
	check.False(t, res.Pending)
	assert.NotNil(t, res.Team)
	check.Equal(t, "mi", res.Team.ID)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/teams/mi", token: csk})
	assert.Equal(t, http.StatusOK, rec.Code)
	team := decode[domain.Team](t, rec)
	check.Equal(t, 1, team.SquadSize)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/undo", token: admin})
	check.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/undo", token: admin})
	check.Equal(t, http.StatusConflict, rec.Code)
	check.Equal(t, true, decode[map[string]any](t, rec)["noop"])
}

func TestServer_RetainPlayer(t *testing.T) {
	h := newTestServer(t)
	admin := token(t, "root", domain.RoleAdmin, "")
	mi := token(t, "mi-owner", domain.RoleTeam, "mi")
	rec := do(t, h, call{method: http.MethodPost, path: "/api/import", token: admin, body: testSeed})
	assert.Equal(t, http.StatusOK, rec.Code)

	body := map[string]any{"team_code": "MI", "price": "1.50"}
	rec = do(t, h, call{method: http.MethodPost, path: "/api/players/p1/retain", token: mi, body: body})
	check.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/players/p1/retain", token: admin, body: map[string]any{"price": "1.50"}})
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/players/p1/retain", token: admin, body: body})
	assert.Equal(t, http.StatusOK, rec.Code)
	p := decode[domain.Player](t, rec)
	check.Equal(t, domain.PlayerStatusRetained, p.Status)
	check.Equal(t, "mi", p.TeamID)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/teams/mi", token: mi})
	assert.Equal(t, http.StatusOK, rec.Code)
	team := decode[domain.Team](t, rec)
	check.Equal(t, "98.50", team.Purse.StringFixed(2))
	check.Equal(t, 1, team.SquadSize)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/players/p1/retain", token: admin, body: body})
	check.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_BidRateLimit(t *testing.T) {
	h := newTestServer(t)
	admin := token(t, "root", domain.RoleAdmin, "")
	mi := token(t, "mi-owner", domain.RoleTeam, "mi")
	lot := openLot(t, h, admin)

	stale := map[string]any{"lot_id": lot.ID, "amount": "999.00", "expected_counter": 0}
	for range 3 {
		rec := do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: mi, body: stale})
		check.Equal(t, http.StatusConflict, rec.Code)
	}
	rec := do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: mi, body: stale})
	check.Equal(t, http.StatusTooManyRequests, rec.Code)
	check.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Another team keeps its own budget.
	csk := token(t, "csk-owner", domain.RoleTeam, "csk")
	rec = do(t, h, call{method: http.MethodPost, path: "/api/auction/bids", token: csk, body: stale})
	check.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auction/bids", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	check.Equal(t, http.StatusNoContent, rec.Code)
	check.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

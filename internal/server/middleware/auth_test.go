package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

const secret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	assert.NoError(t, err)
	return s
}

func claims(sub string, role domain.Role, team, issuer string, ttl time.Duration) Claims {
	return Claims{
		Role:   role,
		TeamID: team,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestAuthenticator_Token(t *testing.T) {
	a := NewAuthenticator(secret, "identity", nil)
	tests := []struct {
		name  string
		token string
		want  domain.Actor
		err   bool
	}{
		{
			name:  "team token",
			token: sign(t, jwt.SigningMethodHS256, []byte(secret), claims("u1", domain.RoleTeam, "mi", "identity", time.Hour)),
			want:  domain.Actor{Subject: "u1", Role: domain.RoleTeam, TeamID: "mi"},
		},
		{
			name:  "wrong issuer",
			token: sign(t, jwt.SigningMethodHS256, []byte(secret), claims("u1", domain.RoleAdmin, "", "elsewhere", time.Hour)),
			err:   true,
		},
		{
			name:  "expired",
			token: sign(t, jwt.SigningMethodHS256, []byte(secret), claims("u1", domain.RoleAdmin, "", "identity", -time.Minute)),
			err:   true,
		},
		{
			name:  "wrong secret",
			token: sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), claims("u1", domain.RoleAdmin, "", "identity", time.Hour)),
			err:   true,
		},
		{
			name:  "wrong algorithm",
			token: sign(t, jwt.SigningMethodHS512, []byte(secret), claims("u1", domain.RoleAdmin, "", "identity", time.Hour)),
			err:   true,
		},
		{
			name:  "unknown role",
			token: sign(t, jwt.SigningMethodHS256, []byte(secret), claims("u1", "owner", "", "identity", time.Hour)),
			err:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auction", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			got, err := a.Authenticate(req)
			if tt.err {
				check.True(t, errors.Is(err, domain.ErrUnauthorized))
				return
			}
			assert.NoError(t, err)
			check.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticator_QueryToken(t *testing.T) {
	a := NewAuthenticator(secret, "", nil)
	tok := sign(t, jwt.SigningMethodHS256, []byte(secret), claims("screen", domain.RoleTeam, "csk", "", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	got, err := a.Authenticate(req)
	assert.NoError(t, err)
	check.Equal(t, "screen", got.Subject)
}

func TestAuthenticator_APIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("floor-key"), bcrypt.MinCost)
	assert.NoError(t, err)
	a := NewAuthenticator("", "", []APIKey{{Name: "floor", Hash: string(hash), Role: domain.RoleAuctioneer}})

	for range 2 { // second pass is served from the match cache
		req := httptest.NewRequest(http.MethodPost, "/api/auction/draw", nil)
		req.Header.Set("X-API-Key", "floor-key")
		got, err := a.Authenticate(req)
		assert.NoError(t, err)
		check.Equal(t, domain.Actor{Subject: "key:floor", Role: domain.RoleAuctioneer}, got)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auction/draw", nil)
	req.Header.Set("X-API-Key", "guess")
	_, err = a.Authenticate(req)
	check.True(t, errors.Is(err, domain.ErrUnauthorized))

	// Bearer tokens are off without a secret.
	req = httptest.NewRequest(http.MethodGet, "/api/auction", nil)
	req.Header.Set("Authorization", "Bearer abc")
	_, err = a.Authenticate(req)
	check.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuth_Middleware(t *testing.T) {
	a := NewAuthenticator(secret, "", nil)
	var seen domain.Actor
	h := Auth(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auction", nil))
	check.Equal(t, http.StatusNoContent, rec.Code)
	check.Equal(t, domain.Actor{}, seen)

	req := httptest.NewRequest(http.MethodGet, "/api/auction", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(secret), claims("u1", domain.RoleAdmin, "", "", -time.Minute)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	check.Equal(t, http.StatusUnauthorized, rec.Code)
	check.Equal(t, `{"error":"token expired"}`, rec.Body.String())
}

package middleware

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// APIKey is a static service credential. Hash is the bcrypt hash of the key.
type APIKey struct {
	Name   string
	Hash   string
	Role   domain.Role
	TeamID string
}

// Claims are the identity service's token claims.
type Claims struct {
	Role   domain.Role `json:"role"`
	TeamID string      `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator turns request credentials into a domain.Actor.
type Authenticator struct {
	secret []byte
	issuer string
	keys   []APIKey

	// matched caches keys that already passed bcrypt, by SHA-256 of the key.
	matched sync.Map
}

// NewAuthenticator creates an Authenticator. An empty secret disables
// bearer tokens; no keys disables X-API-Key.
func NewAuthenticator(secret, issuer string, keys []APIKey) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, keys: keys}
}

// Authenticate resolves the caller. A request with no credentials yields
// the zero Actor and no error; the service layer rejects it where needed.
func (a *Authenticator) Authenticate(r *http.Request) (domain.Actor, error) {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return a.apiKey(key)
	}
	if token := bearer(r); token != "" {
		return a.token(token)
	}
	return domain.Actor{}, nil
}

func (a *Authenticator) token(raw string) (domain.Actor, error) {
	if len(a.secret) == 0 {
		return domain.Actor{}, fmt.Errorf("auth: bearer tokens disabled: %w", domain.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("auth: token: %w: %w", domain.ErrUnauthorized, err)
	}
	actor := domain.Actor{Subject: claims.Subject, Role: claims.Role, TeamID: claims.TeamID}
	if actor.Subject == "" || !actor.Is(domain.RoleAdmin, domain.RoleAuctioneer, domain.RoleTeam) {
		return domain.Actor{}, fmt.Errorf("auth: token subject %q role %q: %w", actor.Subject, actor.Role, domain.ErrUnauthorized)
	}
	return actor, nil
}

func (a *Authenticator) apiKey(key string) (domain.Actor, error) {
	sum := sha256.Sum256([]byte(key))
	if v, ok := a.matched.Load(sum); ok {
		return v.(domain.Actor), nil
	}
	for _, k := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)) != nil {
			continue
		}
		actor := domain.Actor{Subject: "key:" + k.Name, Role: k.Role, TeamID: k.TeamID}
		a.matched.Store(sum, actor)
		return actor, nil
	}
	return domain.Actor{}, fmt.Errorf("auth: unknown api key: %w", domain.ErrUnauthorized)
}

// bearer returns the token from "Authorization: Bearer <token>", or the
// token query parameter browsers use for WebSocket upgrades.
func bearer(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by Auth, or the zero Actor.
func ActorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}

// Auth attaches the caller's identity to the request context. Bad
// credentials are rejected here; missing ones are left to the handlers.
func Auth(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := a.Authenticate(r)
			if err != nil {
				msg := "invalid credentials"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

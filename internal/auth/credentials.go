// Package auth exposes the current bearer credential to the checkout
// coordinator. It issues nothing itself; token issuance belongs to the
// identity backend.
package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer credential for the current operation, or
// reports its absence. Read-only from the consumer's side.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// StaticTokenSource always returns the same token. Useful for tests and
// machine credentials.
type StaticTokenSource struct {
	token string
}

func Static(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(context.Context) (string, bool) {
	if s.token == "" {
		return "", false
	}
	return s.token, true
}

// SessionTokenSource holds a mutable session credential, set at login and
// cleared at logout.
type SessionTokenSource struct {
	mu    sync.RWMutex
	token string
}

func NewSessionTokenSource() *SessionTokenSource {
	return &SessionTokenSource{}
}

func (s *SessionTokenSource) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *SessionTokenSource) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

func (s *SessionTokenSource) Token(context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	return s.token, true
}

type contextKeyBearer struct{}

// WithBearer stores a raw bearer token on the context for request-scoped
// sources.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyBearer{}, token)
}

// RequestTokenSource reads the bearer token the ExtractBearer middleware
// stashed on the request context.
type RequestTokenSource struct{}

func FromRequest() RequestTokenSource {
	return RequestTokenSource{}
}

func (RequestTokenSource) Token(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKeyBearer{}).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ExtractBearer copies the Authorization bearer token, when present, onto
// the request context. It never rejects: whether a credential is required is
// the coordinator's decision, not transport's.
func ExtractBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const bearerPrefix = "Bearer "
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok && token != "" {
			r = r.WithContext(WithBearer(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// VettedTokenSource wraps another source and treats a token whose JWT expiry
// has passed as absent, sparing the order service a guaranteed 401 round
// trip. Tokens that are not JWTs pass through untouched; the backend has the
// final word on their validity.
type VettedTokenSource struct {
	source TokenSource
	parser *jwt.Parser
	now    func() time.Time
}

func Vetted(source TokenSource) *VettedTokenSource {
	return &VettedTokenSource{
		source: source,
		parser: jwt.NewParser(),
		now:    time.Now,
	}
}

func (v *VettedTokenSource) Token(ctx context.Context) (string, bool) {
	token, ok := v.source.Token(ctx)
	if !ok {
		return "", false
	}

	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return token, true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return token, true
	}
	if exp.Before(v.now()) {
		return "", false
	}
	return token, true
}

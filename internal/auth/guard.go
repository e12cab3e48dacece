// Package auth gates protected routes. Every request resolves its session
// against the identity gateway before any invoice data is touched; until
// that resolution finishes the request is neither trusted nor rejected.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"invoicely/internal/cache"
	"invoicely/internal/gateway"
)

// State is the outcome of a session check.
type State int

const (
	// StateChecking means the identity gateway could not be reached, so
	// the session is neither trusted nor rejected.
	StateChecking State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

const (
	SessionCookieName = "session"
	LoginPath         = "/login"

	identityCacheSize = 1024
	identityCacheTTL  = 30 * time.Second
)

type Guard struct {
	identity gateway.IdentityGateway
	cache    *cache.LRUCache[gateway.Identity]

	// verifier, when set, lets API clients authenticate with a locally
	// minted bearer JWT instead of the session cookie.
	verifier *TokenVerifier
}

func NewGuard(identity gateway.IdentityGateway) *Guard {
	return &Guard{
		identity: identity,
		cache:    cache.NewLRUCache[gateway.Identity](identityCacheSize, identityCacheTTL),
	}
}

// UseVerifier enables bearer-token authentication on guarded routes.
func (g *Guard) UseVerifier(v *TokenVerifier) {
	g.verifier = v
}

// IdentityCache exposes the cache for the cleanup manager.
func (g *Guard) IdentityCache() *cache.LRUCache[gateway.Identity] {
	return g.cache
}

// Resolve maps a session token to a state. Identities are cached briefly so
// a burst of requests from one session costs one gateway call.
func (g *Guard) Resolve(ctx context.Context, token string) (State, gateway.Identity, error) {
	if token == "" {
		return StateUnauthenticated, gateway.Identity{}, nil
	}
	if ident, ok := g.cache.Get(token); ok {
		return StateAuthenticated, ident, nil
	}

	ident, err := g.identity.CurrentUser(ctx, token)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			return StateUnauthenticated, gateway.Identity{}, nil
		}
		return StateChecking, gateway.Identity{}, err
	}

	g.cache.Set(token, ident)
	return StateAuthenticated, ident, nil
}

// Forget drops a token from the cache. Called on logout.
func (g *Guard) Forget(token string) {
	g.cache.Delete(token)
}

type contextKey int

const (
	identityKey contextKey = iota
	tokenKey
)

// IdentityFrom returns the authenticated identity set by the middleware.
func IdentityFrom(ctx context.Context) (gateway.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(gateway.Identity)
	return ident, ok
}

// TokenFrom returns the session token set by the middleware.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// Middleware guards a protected route. Unauthenticated browsers are sent to
// the login page with the original destination preserved in ?next=; when
// the gateway is unreachable the request gets a 503 rather than a silent
// redirect that would look like a logout. A valid bearer JWT is accepted in
// place of the session cookie when a verifier is configured.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearer, ok := BearerToken(r); ok && g.verifier != nil {
			sub, err := g.verifier.Verify(bearer)
			if err != nil {
				http.Error(w, "Invalid token.", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, gateway.Identity{ID: sub})
			ctx = context.WithValue(ctx, tokenKey, bearer)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token := sessionToken(r)
		state, ident, err := g.Resolve(r.Context(), token)
		switch state {
		case StateAuthenticated:
			ctx := context.WithValue(r.Context(), identityKey, ident)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		case StateUnauthenticated:
			redirectToLogin(w, r)
		default:
			slog.ErrorContext(r.Context(), "Session check failed", "error", err)
			http.Error(w, "Something went wrong. Please try again.", http.StatusServiceUnavailable)
		}
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := LoginPath
	if r.URL.Path != "/" && r.URL.Path != LoginPath {
		next := r.URL.Path
		if r.URL.RawQuery != "" {
			next += "?" + r.URL.RawQuery
		}
		target = LoginPath + "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// SafeNext validates a ?next= destination so the login flow only redirects
// within the app.
func SafeNext(next string) string {
	if next == "" || next[0] != '/' || len(next) > 1 && next[1] == '/' {
		return "/"
	}
	return next
}

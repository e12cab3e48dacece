package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"invoicely/internal/gateway"
)

type fakeIdentityGateway struct {
	identities map[string]gateway.Identity
	err        error
	calls      int
}

func (f *fakeIdentityGateway) CreateAccount(context.Context, string, string, string) (gateway.Session, error) {
	return gateway.Session{}, errors.New("not implemented")
}

func (f *fakeIdentityGateway) Login(context.Context, string, string) (gateway.Session, error) {
	return gateway.Session{}, errors.New("not implemented")
}

func (f *fakeIdentityGateway) CurrentUser(_ context.Context, token string) (gateway.Identity, error) {
	f.calls++
	if f.err != nil {
		return gateway.Identity{}, f.err
	}
	ident, ok := f.identities[token]
	if !ok {
		return gateway.Identity{}, gateway.ErrUnauthorized
	}
	return ident, nil
}

func (f *fakeIdentityGateway) Logout(context.Context, string) error { return nil }

func (f *fakeIdentityGateway) IssueToken(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	gw := &fakeIdentityGateway{identities: map[string]gateway.Identity{
		"tok-1": {ID: "user-1", Email: "a@example.com"},
	}}
	g := NewGuard(gw)

	state, _, err := g.Resolve(ctx, "")
	if state != StateUnauthenticated || err != nil {
		t.Errorf("empty token: state=%v err=%v", state, err)
	}

	state, ident, err := g.Resolve(ctx, "tok-1")
	if state != StateAuthenticated || err != nil || ident.ID != "user-1" {
		t.Errorf("valid token: state=%v ident=%+v err=%v", state, ident, err)
	}

	state, _, _ = g.Resolve(ctx, "bogus")
	if state != StateUnauthenticated {
		t.Errorf("bogus token: state=%v", state)
	}

	gw.err = errors.New("gateway down")
	state, _, err = g.Resolve(ctx, "tok-2")
	if state != StateChecking || err == nil {
		t.Errorf("gateway failure: state=%v err=%v", state, err)
	}
}

func TestResolveCachesIdentity(t *testing.T) {
	ctx := context.Background()
	gw := &fakeIdentityGateway{identities: map[string]gateway.Identity{
		"tok-1": {ID: "user-1"},
	}}
	g := NewGuard(gw)

	for i := 0; i < 5; i++ {
		if state, _, _ := g.Resolve(ctx, "tok-1"); state != StateAuthenticated {
			t.Fatalf("resolve %d failed", i)
		}
	}
	if gw.calls != 1 {
		t.Errorf("gateway calls = %d, want 1", gw.calls)
	}

	// Forget forces the next resolve back to the gateway.
	g.Forget("tok-1")
	g.Resolve(ctx, "tok-1")
	if gw.calls != 2 {
		t.Errorf("gateway calls after Forget = %d, want 2", gw.calls)
	}
}

func TestMiddleware(t *testing.T) {
	gw := &fakeIdentityGateway{identities: map[string]gateway.Identity{
		"tok-1": {ID: "user-1", Name: "Ada"},
	}}
	g := NewGuard(gw)

	var seen gateway.Identity
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("authenticated request passes identity through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-1"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if seen.ID != "user-1" {
			t.Errorf("identity = %+v", seen)
		}
	})

	t.Run("missing session redirects to login with next", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/invoices?filter=paid", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login?next=%2Finvoices%3Ffilter%3Dpaid" {
			t.Errorf("location = %q", loc)
		}
	})

	t.Run("bearer token is ignored without a verifier", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
		req.Header.Set("Authorization", "Bearer anything")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want redirect to login", rec.Code)
		}
	})

	t.Run("gateway outage is a 503, not a logout", func(t *testing.T) {
		gw.err = errors.New("gateway down")
		defer func() { gw.err = nil }()

		req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-unknown"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestMiddlewareBearerAuth(t *testing.T) {
	g := NewGuard(&fakeIdentityGateway{})
	g.UseVerifier(NewTokenVerifier("secret"))

	var seen gateway.Identity
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	mint := func(secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	t.Run("valid bearer token passes without a cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
		req.Header.Set("Authorization", "Bearer "+mint("secret"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if seen.ID != "user-1" {
			t.Errorf("identity = %+v", seen)
		}
	})

	t.Run("invalid bearer token is a 401, not a redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
		req.Header.Set("Authorization", "Bearer "+mint("wrong"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/invoices", "/invoices"},
		{"/invoices?filter=paid", "/invoices?filter=paid"},
		{"https://evil.example.com", "/"},
		{"//evil.example.com", "/"},
	}
	for _, tt := range tests {
		if got := SafeNext(tt.in); got != tt.want {
			t.Errorf("SafeNext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier("secret")

	mint := func(secret string, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	good := mint("secret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	sub, err := v.Verify(good)
	if err != nil || sub != "user-1" {
		t.Errorf("Verify = %q, %v", sub, err)
	}

	expired := mint("secret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	if _, err := v.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v", err)
	}

	wrongKey := mint("other", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	if _, err := v.Verify(wrongKey); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong key err = %v", err)
	}

	if _, err := v.Verify("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage err = %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
	if _, ok := BearerToken(req); ok {
		t.Error("no header should yield no token")
	}
	req.Header.Set("Authorization", "Bearer abc123")
	tok, ok := BearerToken(req)
	if !ok || tok != "abc123" {
		t.Errorf("token = %q, ok = %v", tok, ok)
	}
}

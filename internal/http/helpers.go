package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"invoicely/internal/auth"
	"invoicely/internal/core"
	"invoicely/internal/store"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// overdueDaysCookie stores the user's overdue threshold preference.
const overdueDaysCookie = "overdue_days"

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// clampOverdueDays keeps the threshold within a sane range.
func clampOverdueDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 365 {
		return 365
	}
	return days
}

// overdueDays reads the threshold preference from its cookie, falling back
// to the default when absent or unparseable.
func overdueDays(r *http.Request) int {
	c, err := r.Cookie(overdueDaysCookie)
	if err != nil {
		return core.DefaultOverdueDays
	}
	days, err := strconv.Atoi(c.Value)
	if err != nil {
		return core.DefaultOverdueDays
	}
	return clampOverdueDays(days)
}

// sessionStore resolves the per-session store for an authenticated request.
// The middleware guarantees identity and token are present.
func (s *Server) sessionStore(r *http.Request) (*store.Store, bool) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return nil, false
	}
	token, ok := auth.TokenFrom(r.Context())
	if !ok {
		return nil, false
	}
	st := s.registry.Get(token, ident.ID, s.invoices)
	// A failed load degrades to an empty collection; retry on the next
	// request so a recovered gateway repopulates it.
	if !st.Loaded() || st.Degraded() {
		_ = st.Load(r.Context())
	}
	return st, true
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
	}
}

func setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

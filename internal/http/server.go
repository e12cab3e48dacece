// Package http serves the invoice dashboard: session-guarded HTML pages
// backed by the per-session store, plus a couple of JSON endpoints for the
// chart and token features.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"invoicely/internal/auth"
	"invoicely/internal/export"
	"invoicely/internal/gateway"
	applog "invoicely/internal/log"
	"invoicely/internal/store"
	appweb "invoicely/web"
)

type Server struct {
	http.Server
	templates *template.Template

	invoices gateway.InvoiceGateway
	identity gateway.IdentityGateway
	guard    *auth.Guard
	registry *store.Registry

	// exporter is nil when Google Sheets export is not configured.
	exporter *export.SheetsExporter

	rateLimiter  *rateLimiter
	metrics      *securityMetrics
	slogger      *applog.StructuredLogger
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. exporter and verifier may be nil; a verifier enables bearer
// JWT auth on guarded routes for API clients.
func NewServer(addr string, invoices gateway.InvoiceGateway, identity gateway.IdentityGateway, exporter *export.SheetsExporter, verifier *auth.TokenVerifier) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		invoices:    invoices,
		identity:    identity,
		guard:       auth.NewGuard(identity),
		registry:    store.NewRegistry(),
		exporter:    exporter,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		slogger: applog.NewStructuredLogger(applog.New(applog.Config{
			Handler:   slog.Default().Handler(),
			Component: applog.ComponentHTTP,
		})),
	}
	if verifier != nil {
		s.guard.UseVerifier(verifier)
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Public auth pages
	mux.HandleFunc("GET /login", s.withSecurity(s.handleLoginPage))
	mux.HandleFunc("POST /login", s.withSecurity(s.handleLogin))
	mux.HandleFunc("GET /signup", s.withSecurity(s.handleSignupPage))
	mux.HandleFunc("POST /signup", s.withSecurity(s.handleSignup))
	mux.HandleFunc("POST /logout", s.withSecurity(s.handleLogout))

	// Everything below requires a live session.
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		guarded := s.guard.Middleware(http.HandlerFunc(h))
		return s.withSecurity(guarded.ServeHTTP)
	}
	mux.HandleFunc("GET /{$}", protected(s.handleDashboard))
	mux.HandleFunc("GET /invoices/new", protected(s.handleInvoiceForm))
	mux.HandleFunc("POST /invoices", protected(s.handleCreateInvoice))
	mux.HandleFunc("GET /invoices/{id}/edit", protected(s.handleInvoiceForm))
	mux.HandleFunc("POST /invoices/{id}", protected(s.handleUpdateInvoice))
	mux.HandleFunc("POST /invoices/{id}/delete", protected(s.handleDeleteInvoice))
	mux.HandleFunc("GET /export.csv", protected(s.handleExportCSV))
	mux.HandleFunc("POST /export/sheets", protected(s.handleExportSheets))
	mux.HandleFunc("GET /api/chart", protected(s.handleChart))
	mux.HandleFunc("GET /api/token", protected(s.handleToken))
	mux.HandleFunc("POST /settings/overdue", protected(s.handleOverdueSetting))

	return s
}

// Guard exposes the session guard so the cleanup manager can reach its
// identity cache.
func (s *Server) Guard() *auth.Guard {
	return s.guard
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurity adds security headers, rate limiting, and request logging.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.slogger.LogHTTPStart(ctx, r, clientIP)

		// Mutations are rate limited per client; reads are not.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.slogger.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

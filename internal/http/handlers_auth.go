package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"invoicely/internal/auth"
	"invoicely/internal/gateway"
)

const minPasswordLength = 8

type authPage struct {
	Error string
	Next  string
	Email string
	Name  string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "login.html", authPage{
		Next: auth.SafeNext(r.URL.Query().Get("next")),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")
	next := auth.SafeNext(r.Form.Get("next"))

	if email == "" || password == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "login.html", authPage{Error: "Email and password are required.", Next: next, Email: email})
		return
	}

	sess, err := s.identity.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			w.WriteHeader(http.StatusUnauthorized)
			s.render(w, r, "login.html", authPage{Error: "Invalid email or password.", Next: next, Email: email})
			return
		}
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		s.render(w, r, "login.html", authPage{Error: "Something went wrong. Please try again.", Next: next, Email: email})
		return
	}

	setSessionCookie(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", authPage{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	name := sanitizeInput(r.Form.Get("name"))
	email := sanitizeInput(r.Form.Get("email"))
	password := r.Form.Get("password")
	confirm := r.Form.Get("confirm")

	page := authPage{Email: email, Name: name}
	switch {
	case name == "" || email == "" || password == "":
		page.Error = "All fields are required."
	case !strings.Contains(email, "@"):
		page.Error = "Please enter a valid email address."
	case len(password) < minPasswordLength:
		page.Error = "Password must be at least 8 characters."
	case password != confirm:
		page.Error = "Passwords do not match."
	}
	if page.Error != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "signup.html", page)
		return
	}

	sess, err := s.identity.CreateAccount(r.Context(), email, password, name)
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			page.Error = "An account with this email already exists."
			w.WriteHeader(http.StatusConflict)
			s.render(w, r, "signup.html", page)
			return
		}
		slog.ErrorContext(r.Context(), "Signup failed", "error", err)
		page.Error = "Something went wrong. Please try again."
		w.WriteHeader(http.StatusServiceUnavailable)
		s.render(w, r, "signup.html", page)
		return
	}

	setSessionCookie(w, sess.Token, sess.ExpiresAt)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout ends the session everywhere it is tracked: the identity
// gateway, the guard's cache, the per-session store, and the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.SessionCookieName); err == nil && c.Value != "" {
		if err := s.identity.Logout(r.Context(), c.Value); err != nil {
			slog.WarnContext(r.Context(), "Logout call failed", "error", err)
		}
		s.guard.Forget(c.Value)
		s.registry.Drop(c.Value)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

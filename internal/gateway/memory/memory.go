// Package memory is an in-memory implementation of both gateways, used by
// tests and the demo backend. It mimics the remote contract closely enough
// to exercise the store and the access guard, including conflict and
// unauthorized rejections.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"invoicely/internal/core"
	"invoicely/internal/gateway"
)

const sessionTTL = 24 * time.Hour

type account struct {
	id           string
	email        string
	name         string
	passwordHash []byte
}

type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*account        // keyed by lowercased email
	sessions map[string]gateway.Session // keyed by token
	invoices map[string]core.Invoice    // keyed by document id
	order    []string                   // creation order of invoice ids

	// seed invoices cloned into every new account, for the demo backend
	seed []core.Invoice
}

// Interface conformance
var (
	_ gateway.InvoiceGateway  = (*Store)(nil)
	_ gateway.IdentityGateway = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now:      time.Now,
		accounts: make(map[string]*account),
		sessions: make(map[string]gateway.Session),
		invoices: make(map[string]core.Invoice),
	}
}

// NewDemo returns a store that starts every new account with a few sample
// invoices, so the demo backend has something to show.
func NewDemo() *Store {
	s := New()
	s.seed = []core.Invoice{
		{InvoiceNumber: "INV-001", Date: core.NewDate(2024, 1, 15), Company: "Acme Ltd Drone Company", Amount: core.Money{Cents: 25000}, Status: core.StatusPaid},
		{InvoiceNumber: "INV-002", Date: core.NewDate(2024, 1, 16), Company: "Beta Ltd Drone Company", Amount: core.Money{Cents: 30000}, Status: core.StatusPending},
		{InvoiceNumber: "INV-003", Date: core.NewDate(2024, 1, 17), Company: "Gamma Ltd Drone Company", Amount: core.Money{Cents: 45000}, Status: core.StatusPending},
	}
	return s
}

// Seed inserts invoices directly, bypassing validation, for demo data.
func (s *Store) Seed(invoices []core.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range invoices {
		if inv.ID == "" {
			inv.ID = uuid.NewString()
		}
		s.invoices[inv.ID] = inv
		s.order = append(s.order, inv.ID)
	}
}

func (s *Store) CreateAccount(_ context.Context, email, password, name string) (gateway.Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return gateway.Session{}, err
	}

	s.mu.Lock()
	if _, exists := s.accounts[key]; exists {
		s.mu.Unlock()
		return gateway.Session{}, gateway.ErrConflict
	}
	acct := &account{id: uuid.NewString(), email: key, name: name, passwordHash: hash}
	s.accounts[key] = acct
	for _, inv := range s.seed {
		inv.ID = uuid.NewString()
		inv.UserID = acct.id
		s.invoices[inv.ID] = inv
		s.order = append(s.order, inv.ID)
	}
	s.mu.Unlock()

	return s.createSession(acct), nil
}

func (s *Store) Login(_ context.Context, email, password string) (gateway.Session, error) {
	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	acct, ok := s.accounts[key]
	s.mu.Unlock()
	if !ok {
		return gateway.Session{}, gateway.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		return gateway.Session{}, gateway.ErrUnauthorized
	}

	// A fresh login replaces any session the user already had.
	s.dropSessionsFor(acct.id)
	return s.createSession(acct), nil
}

func (s *Store) CurrentUser(_ context.Context, token string) (gateway.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return gateway.Identity{}, gateway.ErrUnauthorized
	}
	for _, acct := range s.accounts {
		if acct.id == sess.UserID {
			return gateway.Identity{ID: acct.id, Email: acct.email, Name: acct.name}, nil
		}
	}
	return gateway.Identity{}, gateway.ErrUnauthorized
}

func (s *Store) Logout(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return gateway.ErrUnauthorized
	}
	delete(s.sessions, token)
	return nil
}

// IssueToken hands back an opaque per-call token. The memory backend has no
// signing key; real JWTs come from the appwrite and sqlite backends.
func (s *Store) IssueToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || s.now().After(sess.ExpiresAt) {
		return "", gateway.ErrUnauthorized
	}
	return "mem." + uuid.NewString(), nil
}

func (s *Store) CreateInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv.ID = uuid.NewString()
	s.invoices[inv.ID] = inv
	s.order = append(s.order, inv.ID)
	return inv, nil
}

func (s *Store) ListInvoices(_ context.Context, ownerID string) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Most recent first, like the other gateways.
	var out []core.Invoice
	for i := len(s.order) - 1; i >= 0; i-- {
		inv, ok := s.invoices[s.order[i]]
		if ok && inv.UserID == ownerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Store) UpdateInvoice(_ context.Context, id string, patch gateway.InvoicePatch) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return core.Invoice{}, gateway.ErrNotFound
	}
	inv = patch.Apply(inv)
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	s.invoices[id] = inv
	return inv, nil
}

func (s *Store) DeleteInvoice(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return gateway.ErrNotFound
	}
	delete(s.invoices, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) createSession(acct *account) gateway.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := gateway.Session{
		Token:     uuid.NewString(),
		UserID:    acct.id,
		ExpiresAt: s.now().Add(sessionTTL),
	}
	s.sessions[sess.Token] = sess
	return sess
}

func (s *Store) dropSessionsFor(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
}

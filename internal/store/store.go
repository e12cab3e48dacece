// Package store holds the per-session invoice collection. It is the single
// place invoice state lives between requests: loaded once when a session
// starts, mutated only after the gateway confirms a change, and thrown away
// on logout.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"invoicely/internal/core"
	"invoicely/internal/gateway"
)

// Store mirrors one user's invoices. Mutations are confirm-then-mutate:
// the gateway call happens first and local state changes only on success,
// so a failed call leaves the collection untouched. Concurrent requests
// are serialized by the mutex; the last completed call wins.
type Store struct {
	gw      gateway.InvoiceGateway
	ownerID string

	// createMu serializes number derivation with the confirming append, so
	// two in-flight creates can never draw the same invoice number.
	createMu sync.Mutex

	mu       sync.Mutex
	loaded   bool
	degraded bool
	invoices []core.Invoice
}

func New(gw gateway.InvoiceGateway, ownerID string) *Store {
	return &Store{gw: gw, ownerID: ownerID}
}

// Load replaces the collection with the gateway's contents. A gateway
// failure degrades to an empty collection instead of blocking the session;
// Degraded reports that state so the UI can show a notice.
func (s *Store) Load(ctx context.Context) error {
	invoices, err := s.gw.ListInvoices(ctx, s.ownerID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load invoices, starting empty",
			"owner", s.ownerID, "error", err)
		s.degraded = true
		s.invoices = nil
		return fmt.Errorf("load invoices: %w", err)
	}
	s.degraded = false
	s.invoices = invoices
	return nil
}

// Loaded reports whether Load has completed at least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Degraded reports whether the last Load failed and the collection is a
// placeholder rather than the user's data.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Invoices returns a copy of the collection, most recent first.
func (s *Store) Invoices() []core.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out
}

// Get returns the invoice with the given id.
func (s *Store) Get(id string) (core.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return core.Invoice{}, false
}

// Create derives the next invoice number, stamps the owner, persists through
// the gateway and prepends the stored result on success.
func (s *Store) Create(ctx context.Context, date core.Date, company string, amount core.Money, status core.Status) (core.Invoice, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	s.mu.Lock()
	number := core.NextInvoiceNumber(s.invoices)
	s.mu.Unlock()

	inv := core.Invoice{
		InvoiceNumber: number,
		Date:          date,
		Company:       company,
		Amount:        amount,
		Status:        status,
		UserID:        s.ownerID,
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	created, err := s.gw.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	s.mu.Lock()
	s.invoices = append([]core.Invoice{created}, s.invoices...)
	s.mu.Unlock()
	return created, nil
}

// Update patches the invoice through the gateway and replaces the local
// entry with the confirmed result. The entry may have been removed by a
// concurrent delete that finished first; the confirmed result is then
// dropped rather than resurrected.
func (s *Store) Update(ctx context.Context, id string, patch gateway.InvoicePatch) (core.Invoice, error) {
	updated, err := s.gw.UpdateInvoice(ctx, id, patch)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inv := range s.invoices {
		if inv.ID == id {
			s.invoices[i] = updated
			break
		}
	}
	return updated, nil
}

// Delete removes the invoice through the gateway and drops the local entry
// on success.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteInvoice(ctx, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, inv := range s.invoices {
		if inv.ID == id {
			s.invoices = append(s.invoices[:i], s.invoices[i+1:]...)
			break
		}
	}
	return nil
}

// Reset clears the collection. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.degraded = false
	s.invoices = nil
}

// Registry maps session tokens to their stores so each login gets exactly
// one collection for its lifetime.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Get returns the store for a session, creating it on first use.
func (r *Registry) Get(token, ownerID string, gw gateway.InvoiceGateway) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[token]; ok {
		return s
	}
	s := New(gw, ownerID)
	r.stores[token] = s
	return s
}

// Drop removes and resets the session's store.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[token]; ok {
		s.Reset()
		delete(r.stores, token)
	}
}

// Package gateway defines the ports for the two external service
// boundaries: the document store holding invoice records and the identity
// provider holding accounts and sessions. The application consumes these
// gateways and never implements persistence or identity itself.
package gateway

import (
	"context"
	"errors"
	"time"

	"invoicely/internal/core"
)

// Gateway rejections the UI distinguishes. Anything else is a generic
// failure and gets the generic retry message.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

type (
	// Identity is the authenticated user behind a session.
	Identity struct {
		ID    string
		Email string
		Name  string
	}

	// Session is an established login. Token is opaque to callers.
	Session struct {
		Token     string
		UserID    string
		ExpiresAt time.Time
	}

	// InvoicePatch carries a partial update; nil fields are left unchanged.
	// ID, InvoiceNumber and UserID are immutable and have no patch field.
	InvoicePatch struct {
		Date    *core.Date
		Company *string
		Amount  *core.Money
		Status  *core.Status
	}

	InvoiceGateway interface {
		// CreateInvoice persists a new invoice and returns it with the
		// gateway-assigned ID.
		CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
		// ListInvoices returns every invoice owned by ownerID.
		ListInvoices(ctx context.Context, ownerID string) ([]core.Invoice, error)
		UpdateInvoice(ctx context.Context, id string, patch InvoicePatch) (core.Invoice, error)
		DeleteInvoice(ctx context.Context, id string) error
	}

	IdentityGateway interface {
		// CreateAccount registers a new identity and logs it in.
		// Returns ErrConflict when the email is already registered.
		CreateAccount(ctx context.Context, email, password, name string) (Session, error)
		// Login exchanges credentials for a fresh session, replacing any
		// session the user already had.
		Login(ctx context.Context, email, password string) (Session, error)
		// CurrentUser resolves the identity behind a session token.
		// Returns ErrUnauthorized when the session is absent or expired.
		CurrentUser(ctx context.Context, token string) (Identity, error)
		Logout(ctx context.Context, token string) error
		// IssueToken mints a short-lived JWT for downstream authenticated
		// calls to other services.
		IssueToken(ctx context.Context, token string) (string, error)
	}
)

// Apply returns a copy of inv with the non-nil patch fields replaced.
func (p InvoicePatch) Apply(inv core.Invoice) core.Invoice {
	if p.Date != nil {
		inv.Date = *p.Date
	}
	if p.Company != nil {
		inv.Company = *p.Company
	}
	if p.Amount != nil {
		inv.Amount = *p.Amount
	}
	if p.Status != nil {
		inv.Status = *p.Status
	}
	return inv
}

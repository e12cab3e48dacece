// Package storage is the sqlite persistence layer used by the local
// backend. It keeps invoices, accounts and sessions on disk and tracks
// which invoices still need to be pushed to the remote gateway.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"invoicely/internal/core"
	"invoicely/internal/gateway"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ gateway.InvoiceGateway = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	inv.ID = uuid.NewString()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, date, company, amount_cents, status, user_id, created_at, upload_state, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', 1)`,
		inv.ID, inv.InvoiceNumber, inv.Date.ISO(), inv.Company, inv.Amount.Cents,
		string(inv.Status), inv.UserID, r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"company", inv.Company,
		"amount_cents", inv.Amount.Cents)

	return inv, nil
}

func (r *SQLiteRepository) ListInvoices(ctx context.Context, ownerID string) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, invoice_number, date, company, amount_cents, status, user_id
		FROM invoices
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return invoices, nil
}

func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, date, company, amount_cents, status, user_id
		FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, gateway.ErrNotFound
	}
	return inv, err
}

func (r *SQLiteRepository) UpdateInvoice(ctx context.Context, id string, patch gateway.InvoicePatch) (core.Invoice, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv = patch.Apply(inv)
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	// Every edit bumps the version and re-queues the row for upload, so a
	// stale in-flight message cannot mark the newer edit as uploaded.
	_, err = r.db.ExecContext(ctx, `
		UPDATE invoices
		SET date = ?, company = ?, amount_cents = ?, status = ?,
		    upload_state = 'pending', version = version + 1
		WHERE id = ?`,
		inv.Date.ISO(), inv.Company, inv.Amount.Cents, string(inv.Status), id)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

func (r *SQLiteRepository) DeleteInvoice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv     core.Invoice
		dateISO string
		status  string
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &dateISO, &inv.Company,
		&inv.Amount.Cents, &status, &inv.UserID)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Date, err = core.ParseDate(dateISO)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("stored date %q: %w", dateISO, err)
	}
	inv.Status = core.Status(status)
	return inv, nil
}

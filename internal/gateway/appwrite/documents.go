package appwrite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"

	"invoicely/internal/core"
	"invoicely/internal/gateway"
)

// invoiceDoc is the wire shape of one document. Amounts travel as decimal
// dollars, dates as ISO strings.
type invoiceDoc struct {
	ID            string  `json:"$id"`
	InvoiceNumber string  `json:"invoiceNumber"`
	Date          string  `json:"date"`
	Company       string  `json:"company"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	UserID        string  `json:"userId"`
}

func (c *Client) collectionPath() string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents",
		url.PathEscape(c.cfg.DatabaseID), url.PathEscape(c.cfg.CollectionID))
}

func (c *Client) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	body := map[string]any{
		"documentId": "unique()",
		"data":       docData(inv),
	}
	var doc invoiceDoc
	if err := c.do(ctx, "POST", c.collectionPath(), "", body, &doc); err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return fromDoc(doc)
}

func (c *Client) ListInvoices(ctx context.Context, ownerID string) ([]core.Invoice, error) {
	q := url.Values{}
	q.Add("queries[]", fmt.Sprintf(`equal("userId", ["%s"])`, ownerID))

	var out struct {
		Total     int          `json:"total"`
		Documents []invoiceDoc `json:"documents"`
	}
	if err := c.do(ctx, "GET", c.collectionPath()+"?"+q.Encode(), "", nil, &out); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	invoices := make([]core.Invoice, 0, len(out.Documents))
	for _, doc := range out.Documents {
		inv, err := fromDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("list invoices: document %s: %w", doc.ID, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (c *Client) UpdateInvoice(ctx context.Context, id string, patch gateway.InvoicePatch) (core.Invoice, error) {
	data := map[string]any{}
	if patch.Date != nil {
		data["date"] = patch.Date.ISO()
	}
	if patch.Company != nil {
		data["company"] = *patch.Company
	}
	if patch.Amount != nil {
		data["amount"] = patch.Amount.Dollars()
	}
	if patch.Status != nil {
		data["status"] = string(*patch.Status)
	}

	var doc invoiceDoc
	path := c.collectionPath() + "/" + url.PathEscape(id)
	if err := c.do(ctx, "PATCH", path, "", map[string]any{"data": data}, &doc); err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return fromDoc(doc)
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	path := c.collectionPath() + "/" + url.PathEscape(id)
	if err := c.do(ctx, "DELETE", path, "", nil, nil); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return nil
}

// UpsertInvoice pushes one locally stored invoice, keyed by its local id.
// The first push creates the remote document under that id; later pushes
// overwrite it. This is the worker's upload path.
func (c *Client) UpsertInvoice(ctx context.Context, inv core.Invoice) error {
	data := docData(inv)
	path := c.collectionPath() + "/" + url.PathEscape(inv.ID)
	err := c.do(ctx, "PATCH", path, "", map[string]any{"data": data}, nil)
	if errors.Is(err, gateway.ErrNotFound) {
		body := map[string]any{"documentId": inv.ID, "data": data}
		if err := c.do(ctx, "POST", c.collectionPath(), "", body, nil); err != nil {
			return fmt.Errorf("upsert invoice: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

func docData(inv core.Invoice) map[string]any {
	return map[string]any{
		"invoiceNumber": inv.InvoiceNumber,
		"date":          inv.Date.ISO(),
		"company":       inv.Company,
		"amount":        inv.Amount.Dollars(),
		"status":        string(inv.Status),
		"userId":        inv.UserID,
	}
}

func fromDoc(doc invoiceDoc) (core.Invoice, error) {
	date, err := core.ParseDate(doc.Date)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("bad date %q: %w", doc.Date, err)
	}
	status := core.Status(doc.Status)
	if !status.Valid() {
		return core.Invoice{}, fmt.Errorf("bad status %q: %w", doc.Status, core.ErrInvalidStatus)
	}
	return core.Invoice{
		ID:            doc.ID,
		InvoiceNumber: doc.InvoiceNumber,
		Date:          date,
		Company:       doc.Company,
		Amount:        core.Money{Cents: int64(math.Round(doc.Amount * 100))},
		Status:        status,
		UserID:        doc.UserID,
	}, nil
}

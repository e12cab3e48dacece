// Package export writes an invoice collection to a Google Sheets
// spreadsheet, as a remote alternative to the CSV download. The sheet is a
// snapshot: each export rewrites it wholesale so it always mirrors the
// current collection.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"invoicely/internal/core"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates an exporter from service-account credentials. Either the
// inline JSON or a file path must be set.
func New(ctx context.Context, cfg Config) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Invoices"
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Export replaces the sheet contents with a header row plus one row per
// invoice, in collection order.
func (e *SheetsExporter) Export(ctx context.Context, invoices []core.Invoice) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", e.sheetName, err)
	}

	values := make([][]any, 0, len(invoices)+1)
	values = append(values, []any{"Invoice #", "Date", "Company", "Amount", "Status"})
	for _, inv := range invoices {
		values = append(values, []any{
			inv.InvoiceNumber,
			core.FormatDateUS(inv.Date),
			inv.Company,
			core.FormatAmount(inv.Amount.Cents),
			string(inv.Status),
		})
	}

	writeRange := fmt.Sprintf("%s!A1:E%d", e.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", e.sheetName, err)
	}
	return nil
}

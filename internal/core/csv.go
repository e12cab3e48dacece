package core

import (
	"fmt"
	"io"
	"strings"
)

// CSVFileName is the download name used by the dashboard export.
const CSVFileName = "invoices.csv"

var csvHeader = []string{"Invoice #", "Date", "Company", "Amount", "Status"}

// FormatDateUS renders a date the way the dashboard table does (1/15/2024).
func FormatDateUS(d Date) string {
	return fmt.Sprintf("%d/%d/%d", int(d.Month()), d.Day(), d.Year())
}

// WriteCSV writes the export document: a header row followed by one row per
// invoice, rows separated by newline. Every field is double-quoted with
// internal quotes doubled, amounts carry exactly two decimals, and the
// stored status is exported as-is (the derived Overdue state is a view
// concern, not part of the record).
func WriteCSV(w io.Writer, invoices []Invoice) error {
	if _, err := io.WriteString(w, csvRow(csvHeader)); err != nil {
		return err
	}
	for _, inv := range invoices {
		row := []string{
			inv.InvoiceNumber,
			FormatDateUS(inv.Date),
			inv.Company,
			FormatAmount(inv.Amount.Cents),
			string(inv.Status),
		}
		if _, err := io.WriteString(w, "\n"+csvRow(row)); err != nil {
			return err
		}
	}
	return nil
}

// CSVBytes is WriteCSV into memory, for handlers and tests.
func CSVBytes(invoices []Invoice) []byte {
	var b strings.Builder
	_ = WriteCSV(&b, invoices)
	return []byte(b.String())
}

func csvRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

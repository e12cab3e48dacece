package core

import (
	"strings"
	"testing"
)

func TestWriteCSV_EscapesAndFormats(t *testing.T) {
	xs := []Invoice{{
		ID:            "doc1",
		InvoiceNumber: "INV-001",
		Date:          NewDate(2024, 1, 15),
		Company:       "Acme, Inc.",
		Amount:        Money{Cents: 25000},
		Status:        StatusPaid,
		UserID:        "user-1",
	}}

	got := string(CSVBytes(xs))
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines:\n%s", len(lines), got)
	}
	wantHeader := `"Invoice #","Date","Company","Amount","Status"`
	if lines[0] != wantHeader {
		t.Errorf("header = %s, want %s", lines[0], wantHeader)
	}
	wantRow := `"INV-001","1/15/2024","Acme, Inc.","250.00","Paid"`
	if lines[1] != wantRow {
		t.Errorf("row = %s, want %s", lines[1], wantRow)
	}
}

func TestWriteCSV_DoublesInternalQuotes(t *testing.T) {
	xs := []Invoice{{
		InvoiceNumber: "INV-002",
		Date:          NewDate(2024, 3, 2),
		Company:       `The "Best" Co`,
		Amount:        Money{Cents: 999},
		Status:        StatusPending,
		UserID:        "user-1",
	}}

	got := string(CSVBytes(xs))
	if !strings.Contains(got, `"The ""Best"" Co"`) {
		t.Fatalf("internal quotes not doubled: %s", got)
	}
}

func TestWriteCSV_EmptyCollection(t *testing.T) {
	got := string(CSVBytes(nil))
	if got != `"Invoice #","Date","Company","Amount","Status"` {
		t.Fatalf("empty export = %q", got)
	}
}

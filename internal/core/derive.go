// Derived views over an invoice collection. Everything here is a pure
// function of its inputs: the collection, a threshold in days, and an
// explicit reference time, so callers (and tests) control "now".
package core

import "time"

const (
	ClassPaid    Classification = "Paid"
	ClassPending Classification = "Pending"
	ClassOverdue Classification = "Overdue"
)

const (
	FilterAll     Filter = "All"
	FilterPending Filter = "Pending"
	FilterPaid    Filter = "Paid"
	FilterOverdue Filter = "Overdue"
)

// DefaultOverdueDays is the threshold applied when the user has not
// configured one.
const DefaultOverdueDays = 30

type (
	// Classification is the read-time state shown to the user. Unlike
	// Status it includes Overdue, and the three values are mutually
	// exclusive and exhaustive.
	Classification string

	// Filter selects a dashboard subset. FilterOverdue matches the derived
	// classification, not the stored status.
	Filter string

	// Totals is the amount partition by classification. Pending excludes
	// anything classified Overdue, so the three sums cover the collection
	// with no invoice counted twice.
	Totals struct {
		Paid    Money
		Pending Money
		Overdue Money
	}

	// Tally carries the filter-button counts. Pending and Paid count the
	// stored status; Overdue counts the derived classification.
	Tally struct {
		Total   int
		Pending int
		Paid    int
		Overdue int
	}

	// StatusSlice is one wedge of the status-distribution report.
	StatusSlice struct {
		Name   string
		Amount Money
	}
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterPending, FilterPaid, FilterOverdue:
		return true
	default:
		return false
	}
}

// daysSince is the number of whole days elapsed from d to now.
func daysSince(d Date, now time.Time) int {
	return int(now.Sub(d.Time) / (24 * time.Hour))
}

// IsOverdue reports whether the invoice has gone unpaid past the threshold.
// A Paid invoice is never overdue regardless of date. A gap of exactly
// thresholdDays is not overdue; thresholdDays+1 is.
func IsOverdue(inv Invoice, thresholdDays int, now time.Time) bool {
	if inv.Status == StatusPaid {
		return false
	}
	return daysSince(inv.Date, now) > thresholdDays
}

// Classify maps an invoice to its read-time classification.
func Classify(inv Invoice, thresholdDays int, now time.Time) Classification {
	if inv.Status == StatusPaid {
		return ClassPaid
	}
	if IsOverdue(inv, thresholdDays, now) {
		return ClassOverdue
	}
	return ClassPending
}

// FilterByStatus returns the subset of invoices matching the filter.
// FilterAll is the identity transform and returns the input slice unchanged.
func FilterByStatus(invoices []Invoice, f Filter, thresholdDays int, now time.Time) []Invoice {
	if f == FilterAll {
		return invoices
	}
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		switch f {
		case FilterOverdue:
			if IsOverdue(inv, thresholdDays, now) {
				out = append(out, inv)
			}
		default:
			if inv.Status == Status(f) {
				out = append(out, inv)
			}
		}
	}
	return out
}

// AggregateTotals sums amounts grouped by classification.
func AggregateTotals(invoices []Invoice, thresholdDays int, now time.Time) Totals {
	var t Totals
	for _, inv := range invoices {
		switch Classify(inv, thresholdDays, now) {
		case ClassPaid:
			t.Paid.Cents += inv.Amount.Cents
		case ClassOverdue:
			t.Overdue.Cents += inv.Amount.Cents
		default:
			t.Pending.Cents += inv.Amount.Cents
		}
	}
	return t
}

// CountByStatus computes the filter-button counts for the dashboard.
func CountByStatus(invoices []Invoice, thresholdDays int, now time.Time) Tally {
	t := Tally{Total: len(invoices)}
	for _, inv := range invoices {
		switch inv.Status {
		case StatusPaid:
			t.Paid++
		default:
			t.Pending++
		}
		if IsOverdue(inv, thresholdDays, now) {
			t.Overdue++
		}
	}
	return t
}

// ChartSlices builds the status-distribution data for the report pie.
// Slices with a zero amount are dropped so the chart never renders an
// empty wedge.
func ChartSlices(invoices []Invoice, thresholdDays int, now time.Time) []StatusSlice {
	totals := AggregateTotals(invoices, thresholdDays, now)
	all := []StatusSlice{
		{Name: string(ClassPaid), Amount: totals.Paid},
		{Name: string(ClassPending), Amount: totals.Pending},
		{Name: string(ClassOverdue), Amount: totals.Overdue},
	}
	out := make([]StatusSlice, 0, len(all))
	for _, s := range all {
		if s.Amount.Cents > 0 {
			out = append(out, s)
		}
	}
	return out
}

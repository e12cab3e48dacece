package core

import (
	"fmt"
	"strconv"
	"strings"
)

// InvoiceNumberPrefix is the fixed prefix of generated invoice numbers.
const InvoiceNumberPrefix = "INV-"

// NextInvoiceNumber derives the next sequential invoice number: it scans the
// existing numbers carrying the fixed prefix, takes the highest numeric
// suffix, increments, and zero-pads to three digits (INV-001, INV-002, ...).
// Numbers that do not match the prefix, or whose suffix is not numeric, are
// ignored, so deleted invoices never free a number for reuse.
func NextInvoiceNumber(invoices []Invoice) string {
	max := 0
	for _, inv := range invoices {
		suffix, ok := strings.CutPrefix(inv.InvoiceNumber, InvoiceNumberPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", InvoiceNumberPrefix, max+1)
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
)

type (
	// Status is the stored payment state of an invoice. Overdue is never
	// stored; it is derived at read time (see derive.go).
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Invoice is a single billing record owned by one user. ID is assigned
	// by the invoice gateway at creation; ID and UserID never change.
	Invoice struct {
		ID            string
		InvoiceNumber string
		Date          Date
		Company       string
		Amount        Money
		Status        Status
		UserID        string
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCompany  = errors.New("empty company")
	ErrInvalidStatus = errors.New("invalid status")
	ErrMissingOwner  = errors.New("missing owner")
	ErrMissingNumber = errors.New("missing invoice number")
)

// Valid reports whether s is one of the stored payment states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid:
		return true
	default:
		return false
	}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the ISO form used on the wire and in forms (2024-01-15).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO returns the wire form of the date (2024-01-15).
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Invoice) Validate() error {
	if err := i.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(i.Company)) == 0 {
		return ErrEmptyCompany
	}
	if len(i.Company) > 200 {
		return errors.New("company too long (max 200 characters)")
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Status.Valid() {
		return ErrInvalidStatus
	}
	if strings.TrimSpace(i.InvoiceNumber) == "" {
		return ErrMissingNumber
	}
	if strings.TrimSpace(i.UserID) == "" {
		return ErrMissingOwner
	}
	return nil
}

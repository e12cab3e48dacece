package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"invoicely/internal/auth"
	"invoicely/internal/core"
	"invoicely/internal/gateway"
)

type invoiceRow struct {
	ID      string
	Number  string
	Date    string
	Company string
	Amount  string
	// State is the derived classification, not the stored status.
	State   string
	Pending bool
}

type dashboardPage struct {
	UserName    string
	Degraded    bool
	Filter      string
	Filters     []filterButton
	TotalPaid   string
	TotalDue    string
	TotalLate   string
	OverdueDays int
	Rows        []invoiceRow
	HasSheets   bool
}

type filterButton struct {
	Name   string
	Count  int
	Active bool
}

type invoiceFormPage struct {
	Error   string
	Title   string
	Action  string
	Number  string
	Date    string
	Company string
	Amount  string
	Status  string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}

	filter := core.Filter(r.URL.Query().Get("status"))
	if !filter.Valid() {
		filter = core.FilterAll
	}
	days := overdueDays(r)
	now := time.Now()
	invoices := st.Invoices()

	totals := core.AggregateTotals(invoices, days, now)
	tally := core.CountByStatus(invoices, days, now)
	visible := core.FilterByStatus(invoices, filter, days, now)

	page := dashboardPage{
		Degraded:    st.Degraded(),
		Filter:      string(filter),
		TotalPaid:   core.FormatAmount(totals.Paid.Cents),
		TotalDue:    core.FormatAmount(totals.Pending.Cents),
		TotalLate:   core.FormatAmount(totals.Overdue.Cents),
		OverdueDays: days,
		HasSheets:   s.exporter != nil,
	}
	if ident, ok := auth.IdentityFrom(r.Context()); ok {
		page.UserName = ident.Name
	}
	for _, f := range []struct {
		filter core.Filter
		count  int
	}{
		{core.FilterAll, tally.Total},
		{core.FilterPending, tally.Pending},
		{core.FilterPaid, tally.Paid},
		{core.FilterOverdue, tally.Overdue},
	} {
		page.Filters = append(page.Filters, filterButton{
			Name:   string(f.filter),
			Count:  f.count,
			Active: f.filter == filter,
		})
	}
	for _, inv := range visible {
		page.Rows = append(page.Rows, invoiceRow{
			ID:      inv.ID,
			Number:  inv.InvoiceNumber,
			Date:    core.FormatDateUS(inv.Date),
			Company: inv.Company,
			Amount:  core.FormatAmount(inv.Amount.Cents),
			State:   string(core.Classify(inv, days, now)),
			Pending: inv.Status == core.StatusPending,
		})
	}

	s.render(w, r, "dashboard.html", page)
}

func (s *Server) handleInvoiceForm(w http.ResponseWriter, r *http.Request) {
	page := invoiceFormPage{
		Title:  "New Invoice",
		Action: "/invoices",
		Date:   time.Now().Format("2006-01-02"),
		Status: string(core.StatusPending),
	}

	if id := r.PathValue("id"); id != "" {
		st, ok := s.sessionStore(r)
		if !ok {
			http.Error(w, "session not resolved", http.StatusInternalServerError)
			return
		}
		inv, found := st.Get(id)
		if !found {
			http.NotFound(w, r)
			return
		}
		page.Title = "Edit Invoice"
		page.Action = "/invoices/" + inv.ID
		page.Number = inv.InvoiceNumber
		page.Date = inv.Date.ISO()
		page.Company = inv.Company
		page.Amount = core.FormatAmount(inv.Amount.Cents)
		page.Status = string(inv.Status)
	}

	s.render(w, r, "invoice_form.html", page)
}

// invoiceForm holds the parsed and validated invoice fields from a form post.
type invoiceForm struct {
	date    core.Date
	company string
	amount  core.Money
	status  core.Status
}

func parseInvoiceForm(r *http.Request) (invoiceForm, string) {
	if err := r.ParseForm(); err != nil {
		return invoiceForm{}, "Invalid request format."
	}

	date, err := core.ParseDate(r.Form.Get("date"))
	if err != nil {
		return invoiceForm{}, "Please enter a valid date."
	}
	company := sanitizeInput(r.Form.Get("company"))
	if company == "" {
		return invoiceForm{}, "Company is required."
	}
	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		return invoiceForm{}, "Please enter a valid amount."
	}
	status := core.Status(r.Form.Get("status"))
	if !status.Valid() {
		return invoiceForm{}, "Please choose a valid status."
	}

	return invoiceForm{
		date:    date,
		company: company,
		amount:  core.Money{Cents: cents},
		status:  status,
	}, ""
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}

	form, errMsg := parseInvoiceForm(r)
	if errMsg != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "invoice_form.html", invoiceFormPage{
			Error:   errMsg,
			Title:   "New Invoice",
			Action:  "/invoices",
			Date:    r.Form.Get("date"),
			Company: r.Form.Get("company"),
			Amount:  r.Form.Get("amount"),
			Status:  r.Form.Get("status"),
		})
		return
	}

	created, err := st.Create(r.Context(), form.date, form.company, form.amount, form.status)
	if err != nil {
		slog.ErrorContext(r.Context(), "Invoice create failed", "company", form.company, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "invoice_form.html", invoiceFormPage{
			Error:   "Could not save the invoice. Please try again.",
			Title:   "New Invoice",
			Action:  "/invoices",
			Date:    form.date.ISO(),
			Company: form.company,
			Amount:  r.Form.Get("amount"),
			Status:  string(form.status),
		})
		return
	}

	s.slogger.LogInvoiceCreated(r.Context(), created.InvoiceNumber, created.Company,
		created.Amount.Cents, string(created.Status), created.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}
	id := r.PathValue("id")
	if _, found := st.Get(id); !found {
		http.NotFound(w, r)
		return
	}

	form, errMsg := parseInvoiceForm(r)
	if errMsg != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "invoice_form.html", invoiceFormPage{
			Error:   errMsg,
			Title:   "Edit Invoice",
			Action:  "/invoices/" + id,
			Date:    r.Form.Get("date"),
			Company: r.Form.Get("company"),
			Amount:  r.Form.Get("amount"),
			Status:  r.Form.Get("status"),
		})
		return
	}

	patch := gateway.InvoicePatch{
		Date:    &form.date,
		Company: &form.company,
		Amount:  &form.amount,
		Status:  &form.status,
	}
	if _, err := st.Update(r.Context(), id, patch); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Invoice update failed", "id", id, "error", err)
		http.Error(w, "Could not save the invoice. Please try again.", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}
	id := r.PathValue("id")
	if err := st.Delete(r.Context(), id); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Invoice delete failed", "id", id, "error", err)
		http.Error(w, "Could not delete the invoice. Please try again.", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.CSVFileName+`"`)
	if err := core.WriteCSV(w, st.Invoices()); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		http.NotFound(w, r)
		return
	}
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}
	if err := s.exporter.Export(r.Context(), st.Invoices()); err != nil {
		slog.ErrorContext(r.Context(), "Sheets export failed", "error", err)
		http.Error(w, "Export failed. Please try again.", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleChart returns the status-distribution slices for the report pie.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionStore(r)
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}

	type slice struct {
		Name   string `json:"name"`
		Cents  int64  `json:"cents"`
		Amount string `json:"amount"`
	}
	slices := core.ChartSlices(st.Invoices(), overdueDays(r), time.Now())
	out := make([]slice, 0, len(slices))
	for _, sl := range slices {
		out = append(out, slice{
			Name:   sl.Name,
			Cents:  sl.Amount.Cents,
			Amount: core.FormatAmount(sl.Amount.Cents),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleToken mints a short-lived JWT for authenticated calls to other
// services.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFrom(r.Context())
	if !ok {
		http.Error(w, "session not resolved", http.StatusInternalServerError)
		return
	}
	jwt, err := s.identity.IssueToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		slog.ErrorContext(r.Context(), "Token issue failed", "error", err)
		http.Error(w, "Something went wrong. Please try again.", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"jwt": jwt})
}

func (s *Server) handleOverdueSetting(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	days, err := strconv.Atoi(r.Form.Get("days"))
	if err != nil {
		http.Error(w, "invalid threshold", http.StatusUnprocessableEntity)
		return
	}
	days = clampOverdueDays(days)
	http.SetCookie(w, &http.Cookie{
		Name:     overdueDaysCookie,
		Value:    strconv.Itoa(days),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

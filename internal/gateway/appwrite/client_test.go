package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"invoicely/internal/core"
	"invoicely/internal/gateway"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		Endpoint:     srv.URL,
		ProjectID:    "proj",
		APIKey:       "key",
		DatabaseID:   "db",
		CollectionID: "invoices",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestLoginSendsProjectHeaderAndDecodesSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/account/sessions/email" {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Appwrite-Project"); got != "proj" {
			t.Errorf("project header = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "a@example.com" {
			t.Errorf("email = %q", body["email"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"$id":    "sess-1",
			"userId": "user-1",
			"secret": "tok-1",
			"expire": "2030-01-01T00:00:00Z",
		})
	}))

	sess, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token != "tok-1" || sess.UserID != "user-1" {
		t.Errorf("session = %+v", sess)
	}
}

func TestCurrentUserAuthenticatesWithSessionHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Appwrite-Session"); got != "tok-1" {
			t.Errorf("session header = %q", got)
		}
		if got := r.Header.Get("X-Appwrite-Key"); got != "" {
			t.Errorf("api key leaked into session call: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"$id": "user-1", "email": "a@example.com", "name": "Ada",
		})
	}))

	id, err := c.CurrentUser(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if id.ID != "user-1" || id.Name != "Ada" {
		t.Errorf("identity = %+v", id)
	}
}

func TestErrorStatusMapsToSentinels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: gateway.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: gateway.ErrUnauthorized},
		{name: "not found", status: http.StatusNotFound, want: gateway.ErrNotFound},
		{name: "conflict", status: http.StatusConflict, want: gateway.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
			}))
			_, err := c.CurrentUser(context.Background(), "tok")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateInvoiceRoundTripsAmountAsDollars(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/databases/db/collections/invoices/documents" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Appwrite-Key"); got != "key" {
			t.Errorf("api key header = %q", got)
		}
		var body struct {
			DocumentID string         `json:"documentId"`
			Data       map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Data["amount"] != 2.5 {
			t.Errorf("wire amount = %v, want 2.5", body.Data["amount"])
		}
		json.NewEncoder(w).Encode(invoiceDoc{
			ID:            "doc-1",
			InvoiceNumber: body.Data["invoiceNumber"].(string),
			Date:          body.Data["date"].(string),
			Company:       body.Data["company"].(string),
			Amount:        body.Data["amount"].(float64),
			Status:        body.Data["status"].(string),
			UserID:        body.Data["userId"].(string),
		})
	}))

	got, err := c.CreateInvoice(context.Background(), core.Invoice{
		InvoiceNumber: "INV-001",
		Date:          core.NewDate(2024, 1, 15),
		Company:       "Acme",
		Amount:        core.Money{Cents: 250},
		Status:        core.StatusPending,
		UserID:        "user-1",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if got.ID != "doc-1" || got.Amount.Cents != 250 {
		t.Errorf("invoice = %+v", got)
	}
}

func TestListInvoicesFiltersByOwnerQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()["queries[]"]
		if len(q) != 1 || q[0] != `equal("userId", ["user-1"])` {
			t.Errorf("queries = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"documents": []invoiceDoc{{
				ID:            "doc-1",
				InvoiceNumber: "INV-001",
				Date:          "2024-01-15",
				Company:       "Acme",
				Amount:        10.01,
				Status:        "Paid",
				UserID:        "user-1",
			}},
		})
	}))

	got, err := c.ListInvoices(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Amount.Cents != 1001 || got[0].Status != core.StatusPaid {
		t.Errorf("invoice = %+v", got[0])
	}
}

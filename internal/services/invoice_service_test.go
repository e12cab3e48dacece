package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"invoicely/internal/core"
	"invoicely/internal/gateway"
	"invoicely/internal/storage"
)

type publishCall struct {
	kind    string
	id      string
	version int64
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) PublishInvoiceUpsert(_ context.Context, id string, version int64) error {
	f.calls = append(f.calls, publishCall{kind: "upsert", id: id, version: version})
	return f.err
}

func (f *fakePublisher) PublishInvoiceDelete(_ context.Context, id string) error {
	f.calls = append(f.calls, publishCall{kind: "delete", id: id})
	return f.err
}

func newTestService(t *testing.T, pub *fakePublisher) *LocalInvoiceService {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "invoicely.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	svc := &LocalInvoiceService{storage: repo}
	if pub != nil {
		svc.publisher = pub
	}
	return svc
}

func sampleInvoice() core.Invoice {
	return core.Invoice{
		InvoiceNumber: "INV-001",
		Date:          core.NewDate(2024, 1, 15),
		Company:       "Acme",
		Amount:        core.Money{Cents: 25000},
		Status:        core.StatusPending,
		UserID:        "user-1",
	}
}

func TestServicePublishesEachChange(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := newTestService(t, pub)

	created, err := svc.CreateInvoice(ctx, sampleInvoice())
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	paid := core.StatusPaid
	if _, err := svc.UpdateInvoice(ctx, created.ID, gateway.InvoicePatch{Status: &paid}); err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}

	if err := svc.DeleteInvoice(ctx, created.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}

	want := []publishCall{
		{kind: "upsert", id: created.ID, version: 1},
		{kind: "upsert", id: created.ID, version: 2},
		{kind: "delete", id: created.ID},
	}
	if len(pub.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", pub.calls, want)
	}
	for i := range want {
		if pub.calls[i] != want[i] {
			t.Errorf("call[%d] = %+v, want %+v", i, pub.calls[i], want[i])
		}
	}
}

func TestServiceSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(t, pub)

	created, err := svc.CreateInvoice(ctx, sampleInvoice())
	if err != nil {
		t.Fatalf("CreateInvoice should not fail on publish error: %v", err)
	}

	// The row is saved locally and stays pending for the startup sweep.
	got, err := svc.ListInvoices(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListInvoices: %v", err)
	}
	if len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("list = %+v", got)
	}
}

func TestServiceWithoutQueue(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	created, err := svc.CreateInvoice(ctx, sampleInvoice())
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if err := svc.DeleteInvoice(ctx, created.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
}

package worker

import (
	"context"
	"errors"
	"testing"

	"invoicely/internal/amqp"
	"invoicely/internal/core"
	"invoicely/internal/gateway"
	"invoicely/internal/storage"
)

type fakeSource struct {
	invoices map[string]core.Invoice
	versions map[string]int64
	pending  []storage.PendingUpload

	uploaded []string
	errored  []string
}

func (f *fakeSource) GetInvoice(_ context.Context, id string) (core.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return core.Invoice{}, gateway.ErrNotFound
	}
	return inv, nil
}

func (f *fakeSource) GetUploadVersion(_ context.Context, id string) (int64, error) {
	v, ok := f.versions[id]
	if !ok {
		return 0, errors.New("no such row")
	}
	return v, nil
}

func (f *fakeSource) GetPendingUploads(_ context.Context, limit int) ([]storage.PendingUpload, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeSource) MarkUploaded(_ context.Context, id string, _ int64) error {
	f.uploaded = append(f.uploaded, id)
	return nil
}

func (f *fakeSource) MarkUploadError(_ context.Context, id string) error {
	f.errored = append(f.errored, id)
	return nil
}

type fakeUploader struct {
	upserts []string
	deletes []string
	err     error
}

func (f *fakeUploader) UpsertInvoice(_ context.Context, inv core.Invoice) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, inv.ID)
	return nil
}

func (f *fakeUploader) DeleteInvoice(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func testSource() *fakeSource {
	return &fakeSource{
		invoices: map[string]core.Invoice{
			"inv-1": {
				ID:            "inv-1",
				InvoiceNumber: "INV-001",
				Date:          core.NewDate(2024, 1, 15),
				Company:       "Acme",
				Amount:        core.Money{Cents: 100},
				Status:        core.StatusPending,
				UserID:        "user-1",
			},
		},
		versions: map[string]int64{"inv-1": 2},
	}
}

func TestHandleUploadMessage_Upsert(t *testing.T) {
	src := testSource()
	up := &fakeUploader{}
	w := NewUploadWorker(src, up, 10)

	msg := &amqp.InvoiceUploadMessage{Kind: amqp.KindUpsert, ID: "inv-1", Version: 2}
	if err := w.HandleUploadMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleUploadMessage: %v", err)
	}
	if len(up.upserts) != 1 || up.upserts[0] != "inv-1" {
		t.Errorf("upserts = %v", up.upserts)
	}
	if len(src.uploaded) != 1 {
		t.Errorf("uploaded = %v", src.uploaded)
	}
}

func TestHandleUploadMessage_SkipsStaleRevision(t *testing.T) {
	src := testSource() // current version 2
	up := &fakeUploader{}
	w := NewUploadWorker(src, up, 10)

	msg := &amqp.InvoiceUploadMessage{Kind: amqp.KindUpsert, ID: "inv-1", Version: 1}
	if err := w.HandleUploadMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleUploadMessage: %v", err)
	}
	if len(up.upserts) != 0 {
		t.Errorf("stale revision was pushed: %v", up.upserts)
	}
}

func TestHandleUploadMessage_DeletedRowIsAcked(t *testing.T) {
	src := testSource()
	delete(src.invoices, "inv-1")
	delete(src.versions, "inv-1")
	w := NewUploadWorker(src, &fakeUploader{}, 10)

	msg := &amqp.InvoiceUploadMessage{Kind: amqp.KindUpsert, ID: "inv-1", Version: 1}
	if err := w.HandleUploadMessage(context.Background(), msg); err != nil {
		t.Fatalf("deleted row should be skipped, got: %v", err)
	}
}

func TestHandleUploadMessage_PushFailureMarksErrorAndRequeues(t *testing.T) {
	src := testSource()
	up := &fakeUploader{err: errors.New("gateway down")}
	w := NewUploadWorker(src, up, 10)

	msg := &amqp.InvoiceUploadMessage{Kind: amqp.KindUpsert, ID: "inv-1", Version: 2}
	if err := w.HandleUploadMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error so the delivery is requeued")
	}
	if len(src.errored) != 1 || src.errored[0] != "inv-1" {
		t.Errorf("errored = %v", src.errored)
	}
}

func TestHandleUploadMessage_Delete(t *testing.T) {
	src := testSource()
	up := &fakeUploader{}
	w := NewUploadWorker(src, up, 10)

	msg := &amqp.InvoiceUploadMessage{Kind: amqp.KindDelete, ID: "inv-1"}
	if err := w.HandleUploadMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleUploadMessage: %v", err)
	}
	if len(up.deletes) != 1 || up.deletes[0] != "inv-1" {
		t.Errorf("deletes = %v", up.deletes)
	}
}

func TestStartupUploadCheck(t *testing.T) {
	src := testSource()
	src.pending = []storage.PendingUpload{{ID: "inv-1", Version: 2}}
	up := &fakeUploader{}
	w := NewUploadWorker(src, up, 10)

	if err := w.StartupUploadCheck(context.Background()); err != nil {
		t.Fatalf("StartupUploadCheck: %v", err)
	}
	if len(up.upserts) != 1 {
		t.Errorf("upserts = %v", up.upserts)
	}
	if len(src.uploaded) != 1 {
		t.Errorf("uploaded = %v", src.uploaded)
	}
}

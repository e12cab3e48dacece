// Package worker pushes locally stored invoices to the remote gateway. It
// consumes the upload queue and runs a startup sweep so rows queued while
// the worker was down are not lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"invoicely/internal/amqp"
	"invoicely/internal/core"
	"invoicely/internal/gateway"
	"invoicely/internal/storage"
)

// InvoiceSource is the slice of the sqlite repository the worker reads
// from and reports back to.
type InvoiceSource interface {
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	GetUploadVersion(ctx context.Context, id string) (int64, error)
	GetPendingUploads(ctx context.Context, limit int) ([]storage.PendingUpload, error)
	MarkUploaded(ctx context.Context, id string, version int64) error
	MarkUploadError(ctx context.Context, id string) error
}

// Uploader is the remote side of the push.
type Uploader interface {
	UpsertInvoice(ctx context.Context, inv core.Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
}

type UploadWorker struct {
	source    InvoiceSource
	uploader  Uploader
	batchSize int
}

func NewUploadWorker(source InvoiceSource, uploader Uploader, batchSize int) *UploadWorker {
	return &UploadWorker{
		source:    source,
		uploader:  uploader,
		batchSize: batchSize,
	}
}

// HandleUploadMessage processes a single queue message. Stale revisions and
// rows deleted since queuing are acked and skipped; a push failure is
// returned so the delivery is requeued.
func (w *UploadWorker) HandleUploadMessage(ctx context.Context, msg *amqp.InvoiceUploadMessage) error {
	slog.InfoContext(ctx, "Processing upload message",
		"kind", msg.Kind,
		"id", msg.ID,
		"version", msg.Version)

	if msg.Kind == amqp.KindDelete {
		return w.pushDelete(ctx, msg.ID)
	}

	current, err := w.source.GetUploadVersion(ctx, msg.ID)
	if err != nil {
		slog.InfoContext(ctx, "Invoice gone, skipping upload", "id", msg.ID)
		return nil
	}
	if msg.Version < current {
		// A newer revision has its own message in flight.
		slog.InfoContext(ctx, "Skipping stale revision",
			"id", msg.ID, "version", msg.Version, "current", current)
		return nil
	}

	return w.pushUpsert(ctx, msg.ID, msg.Version)
}

// ProcessPendingUploads sweeps rows whose push was never confirmed. This is
// the backup path for lost queue messages.
func (w *UploadWorker) ProcessPendingUploads(ctx context.Context) error {
	pending, err := w.source.GetPendingUploads(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending uploads: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending uploads", "count", len(pending))
	for _, p := range pending {
		if err := w.pushUpsert(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to upload invoice", "id", p.ID, "error", err)
		}
	}
	return nil
}

// StartupUploadCheck recovers rows queued while the worker was down.
func (w *UploadWorker) StartupUploadCheck(ctx context.Context) error {
	pending, err := w.source.GetPendingUploads(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending uploads for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending uploads found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending uploads on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, p := range pending {
		if err := w.pushUpsert(ctx, p.ID, p.Version); err != nil {
			slog.ErrorContext(ctx, "Failed to upload invoice during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup upload check completed",
		"total", len(pending),
		"uploaded", successCount,
		"errors", errorCount)
	return nil
}

func (w *UploadWorker) pushUpsert(ctx context.Context, id string, version int64) error {
	inv, err := w.source.GetInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			slog.InfoContext(ctx, "Invoice deleted before upload, skipping", "id", id)
			return nil
		}
		return fmt.Errorf("get invoice from storage: %w", err)
	}

	if err := w.uploader.UpsertInvoice(ctx, inv); err != nil {
		if markErr := w.source.MarkUploadError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark upload error", "id", id, "error", markErr)
		}
		return fmt.Errorf("push invoice: %w", err)
	}

	if err := w.source.MarkUploaded(ctx, id, version); err != nil {
		// The push itself worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as uploaded", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Successfully uploaded invoice",
		"id", id,
		"version", version,
		"invoice_number", inv.InvoiceNumber)
	return nil
}

func (w *UploadWorker) pushDelete(ctx context.Context, id string) error {
	if err := w.uploader.DeleteInvoice(ctx, id); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			slog.InfoContext(ctx, "Remote invoice already gone", "id", id)
			return nil
		}
		return fmt.Errorf("delete remote invoice: %w", err)
	}
	slog.InfoContext(ctx, "Successfully deleted remote invoice", "id", id)
	return nil
}

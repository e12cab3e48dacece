// Package services orchestrates invoice operations across the local sqlite
// store and the upload queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"invoicely/internal/amqp"
	"invoicely/internal/core"
	"invoicely/internal/gateway"
	"invoicely/internal/storage"
)

// Publisher is the slice of the queue client the service needs.
type Publisher interface {
	PublishInvoiceUpsert(ctx context.Context, id string, version int64) error
	PublishInvoiceDelete(ctx context.Context, id string) error
}

// LocalInvoiceService persists invoices to sqlite and queues each change
// for upload. The local write is the source of truth; a failed publish is
// logged and recovered by the worker's startup sweep, never surfaced to
// the caller.
type LocalInvoiceService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	closer    func() error
}

var _ gateway.InvoiceGateway = (*LocalInvoiceService)(nil)

func NewLocalInvoiceService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LocalInvoiceService {
	s := &LocalInvoiceService{storage: storage}
	if amqpClient != nil {
		s.publisher = amqpClient
		s.closer = amqpClient.Close
	}
	return s
}

func (s *LocalInvoiceService) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	created, err := s.storage.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}

	// New rows start at revision 1.
	if err := s.publishUpsert(ctx, created.ID, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish upload message",
			"id", created.ID, "error", err)
	}
	return created, nil
}

func (s *LocalInvoiceService) ListInvoices(ctx context.Context, ownerID string) ([]core.Invoice, error) {
	return s.storage.ListInvoices(ctx, ownerID)
}

func (s *LocalInvoiceService) UpdateInvoice(ctx context.Context, id string, patch gateway.InvoicePatch) (core.Invoice, error) {
	updated, err := s.storage.UpdateInvoice(ctx, id, patch)
	if err != nil {
		return core.Invoice{}, err
	}

	version, err := s.storage.GetUploadVersion(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read upload version", "id", id, "error", err)
		return updated, nil
	}
	if err := s.publishUpsert(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish upload message",
			"id", id, "version", version, "error", err)
	}
	return updated, nil
}

func (s *LocalInvoiceService) DeleteInvoice(ctx context.Context, id string) error {
	if err := s.storage.DeleteInvoice(ctx, id); err != nil {
		return err
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "Queue client not available, skipping delete message", "id", id)
		return nil
	}
	if err := s.publisher.PublishInvoiceDelete(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
	}
	return nil
}

func (s *LocalInvoiceService) publishUpsert(ctx context.Context, id string, version int64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Queue client not available, skipping upload message", "id", id)
		return nil
	}
	return s.publisher.PublishInvoiceUpsert(ctx, id, version)
}

func (s *LocalInvoiceService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.closer != nil {
		if err := s.closer(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close invoice service: %v", errs)
	}
	return nil
}

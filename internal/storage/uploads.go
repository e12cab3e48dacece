package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PendingUpload identifies one invoice revision waiting for the push to the
// remote gateway. Version lets the worker discard messages for revisions
// that were edited again before the push happened.
type PendingUpload struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetPendingUploads returns invoices whose latest revision has not been
// confirmed uploaded, oldest first.
func (r *SQLiteRepository) GetPendingUploads(ctx context.Context, limit int) ([]PendingUpload, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at
		FROM invoices
		WHERE upload_state IN ('pending', 'error')
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending uploads: %w", err)
	}
	defer rows.Close()

	var pending []PendingUpload
	for rows.Next() {
		var (
			p         PendingUpload
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending upload: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			p.CreatedAt = t
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending uploads: %w", err)
	}
	return pending, nil
}

// GetUploadVersion returns the current revision of one invoice, for
// stamping queue messages.
func (r *SQLiteRepository) GetUploadVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	row := r.db.QueryRowContext(ctx, `SELECT version FROM invoices WHERE id = ?`, id)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query upload version: %w", err)
	}
	return version, nil
}

// MarkUploaded confirms the push for one revision. A row edited since the
// message was queued has a higher version and stays pending.
func (r *SQLiteRepository) MarkUploaded(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET upload_state = 'uploaded'
		WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.InfoContext(ctx, "Upload confirmation for stale revision ignored",
			"id", id, "version", version)
		return nil
	}
	slog.InfoContext(ctx, "Invoice marked as uploaded", "id", id, "version", version)
	return nil
}

// MarkUploadError flags a failed push so the startup sweep retries it.
func (r *SQLiteRepository) MarkUploadError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET upload_state = 'error', upload_attempts = upload_attempts + 1
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark upload error: %w", err)
	}
	slog.WarnContext(ctx, "Invoice marked with upload error", "id", id)
	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const batchColumns = `id, user_id, file_name, original_file_url, file_size, total_records,
	cleaned_records, error_records, warning_records, status, region,
	processed_file_url, created_at, updated_at, completed_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.UserID, &b.FileName, &b.OriginalFileURL, &b.FileSize, &b.TotalRecords,
		&b.CleanedRecords, &b.ErrorRecords, &b.WarningRecords, &b.Status, &b.Region,
		&b.ProcessedFileURL, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt,
	)
	return b, err
}

func collectBatches(rows pgx.Rows, err error) ([]Batch, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// CreateBatch inserts a pending batch.
func (s *Store) CreateBatch(ctx context.Context, nb NewBatch) (Batch, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO upload_batches (user_id, file_name, original_file_url, file_size, total_records, status, region)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+batchColumns,
		nb.UserID, nb.FileName, nb.OriginalFileURL, nb.FileSize, nb.TotalRecords, BatchPending, nb.Region,
	)
	b, err := scanBatch(row)
	if err != nil {
		return Batch{}, fmt.Errorf("create batch: %w", mapError(err))
	}
	return b, nil
}

// GetBatch returns the batch with the given id.
func (s *Store) GetBatch(ctx context.Context, id int64) (Batch, error) {
	row := s.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM upload_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		return Batch{}, mapError(err)
	}
	return b, nil
}

// ListBatches returns a user's batches, newest first.
func (s *Store) ListBatches(ctx context.Context, userID int64, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	batches, err := collectBatches(s.db.Query(ctx, `
		SELECT `+batchColumns+` FROM upload_batches
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit))
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// UpdateBatch applies the set fields of u.
func (s *Store) UpdateBatch(ctx context.Context, id int64, u BatchUpdate) error {
	var sb setBuilder
	if u.Status != nil {
		sb.set("status", *u.Status)
	}
	if u.TotalRecords != nil {
		sb.set("total_records", *u.TotalRecords)
	}
	if u.CleanedRecords != nil {
		sb.set("cleaned_records", *u.CleanedRecords)
	}
	if u.ErrorRecords != nil {
		sb.set("error_records", *u.ErrorRecords)
	}
	if u.WarningRecords != nil {
		sb.set("warning_records", *u.WarningRecords)
	}
	if u.ProcessedFileURL != nil {
		sb.set("processed_file_url", *u.ProcessedFileURL)
	}
	if u.CompletedAt != nil {
		sb.set("completed_at", *u.CompletedAt)
	}
	if sb.empty() {
		return nil
	}
	sb.assignments = append(sb.assignments, "updated_at = now()")

	query, args := sb.update("upload_batches", id)
	if err := expectOne(s.db.Exec(ctx, query, args...)); err != nil {
		return fmt.Errorf("update batch %d: %w", id, err)
	}
	return nil
}

// ClaimBatch moves a batch to processing in one statement. It reports
// false when the batch is already processing.
func (s *Store) ClaimBatch(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE upload_batches
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status <> 'processing'`, id)
	if err != nil {
		return false, fmt.Errorf("claim batch %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// BatchStats counts a user's batches by status.
func (s *Store) BatchStats(ctx context.Context, userID int64) (BatchStats, error) {
	var st BatchStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM upload_batches WHERE user_id = $1`, userID,
	).Scan(&st.Total, &st.Pending, &st.Processing, &st.Completed, &st.Failed)
	if err != nil {
		return BatchStats{}, fmt.Errorf("batch stats: %w", err)
	}
	return st, nil
}

// FailInterruptedWork marks jobs and batches left running by a previous
// process as failed. Returns the number of jobs updated.
func (s *Store) FailInterruptedWork(ctx context.Context, reason string) (int64, error) {
	var n int64
	err := s.WithTx(ctx, func(tx *Store) error {
		tag, err := tx.db.Exec(ctx, `
			UPDATE processing_jobs
			SET status = 'failed', error_message = $1, completed_at = now()
			WHERE status IN ('queued', 'processing')`, reason)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()

		_, err = tx.db.Exec(ctx, `
			UPDATE upload_batches SET status = 'failed', updated_at = now()
			WHERE status = 'processing'`)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fail interrupted work: %w", err)
	}
	return n, nil
}

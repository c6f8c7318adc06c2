package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
)

const recordColumns = `id, batch_id, row_index, original_data, cleaned_data,
	name, phone, email, address_line1, address_line2, city, state, postal_code, country,
	cleaned_name, cleaned_phone, cleaned_email, cleaned_address_line1, cleaned_address_line2,
	cleaned_city, cleaned_state, cleaned_postal_code, cleaned_country,
	status, quality_score, needs_review, reviewed_by, reviewed_at, created_at, updated_at`

// copyRecordColumns are written by InsertRecords.
var copyRecordColumns = []string{
	"batch_id", "row_index", "original_data", "cleaned_data",
	"name", "phone", "email", "address_line1", "address_line2", "city", "state", "postal_code", "country",
	"status",
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	raw := &r.RawRecord
	c := &r.Cleaned
	err := row.Scan(
		&raw.ID, &raw.BatchID, &raw.RowIndex, &raw.OriginalData, &r.CleanedData,
		&raw.Name, &raw.Phone, &raw.Email, &raw.AddressLine1, &raw.AddressLine2,
		&raw.City, &raw.State, &raw.PostalCode, &raw.Country,
		&c.Name, &c.Phone, &c.Email, &c.AddressLine1, &c.AddressLine2,
		&c.City, &c.State, &c.PostalCode, &c.Country,
		&r.Status, &r.QualityScore, &r.NeedsReview, &r.ReviewedBy, &r.ReviewedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

func collectRecords(rows pgx.Rows, err error) ([]Record, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// InsertRecords bulk-loads mapped rows with COPY. Records start pending.
func (s *Store) InsertRecords(ctx context.Context, records []cleaning.RawRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"data_records"},
		copyRecordColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{
				r.BatchID, r.RowIndex, nonNil(r.OriginalData), map[string]string{},
				r.Name, r.Phone, r.Email, r.AddressLine1, r.AddressLine2,
				r.City, r.State, r.PostalCode, r.Country,
				string(cleaning.StatusPending),
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("insert records: %w", mapError(err))
	}
	return n, nil
}

// GetRecord returns the record with the given id.
func (s *Store) GetRecord(ctx context.Context, id int64) (Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM data_records WHERE id = $1`, id))
	if err != nil {
		return Record{}, mapError(err)
	}
	return r, nil
}

// ListRecords returns a page of a batch's records in row order.
func (s *Store) ListRecords(ctx context.Context, batchID int64, f RecordFilter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultRecordLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	wb := NewWhereBuilder()
	wb.AddID("batch_id", batchID)
	wb.Add("status", string(f.Status))
	wb.AddBool("needs_review", f.NeedsReview)
	where, args := wb.Build()

	query := `SELECT ` + recordColumns + ` FROM data_records` + where +
		fmt.Sprintf(" ORDER BY row_index LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	records, err := collectRecords(s.db.Query(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// AllRecords returns every record of a batch in row order.
func (s *Store) AllRecords(ctx context.Context, batchID int64) ([]Record, error) {
	records, err := collectRecords(s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM data_records WHERE batch_id = $1 ORDER BY row_index`, batchID))
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// RecordsNeedingReview returns flagged records, lowest score first.
func (s *Store) RecordsNeedingReview(ctx context.Context, batchID int64) ([]Record, error) {
	records, err := collectRecords(s.db.Query(ctx, `
		SELECT `+recordColumns+` FROM data_records
		WHERE batch_id = $1 AND needs_review
		ORDER BY quality_score, row_index`, batchID))
	if err != nil {
		return nil, fmt.Errorf("list records needing review: %w", err)
	}
	return records, nil
}

const saveCleaningSQL = `
	UPDATE data_records SET
		cleaned_name = $2, cleaned_phone = $3, cleaned_email = $4,
		cleaned_address_line1 = $5, cleaned_address_line2 = $6, cleaned_city = $7,
		cleaned_state = $8, cleaned_postal_code = $9, cleaned_country = $10,
		cleaned_data = $11, status = $12, quality_score = $13, needs_review = $14,
		updated_at = now()
	WHERE id = $1`

// SaveCleaning stores the cleaning outcome of each record. Statements are
// pipelined in one round trip.
func (s *Store) SaveCleaning(ctx context.Context, records []cleaning.CleanedRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		c := r.Cleaned
		batch.Queue(saveCleaningSQL,
			r.ID, c.Name, c.Phone, c.Email, c.AddressLine1, c.AddressLine2,
			c.City, c.State, c.PostalCode, c.Country,
			nonNil(r.CleanedData), string(r.Status), r.QualityScore, r.NeedsReview,
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for _, r := range records {
		if err := expectOne(br.Exec()); err != nil {
			return fmt.Errorf("save record %d: %w", r.ID, err)
		}
	}
	return br.Close()
}

// UpdateCleanedFields replaces a record's cleaned values after a manual edit.
func (s *Store) UpdateCleanedFields(ctx context.Context, id int64, c cleaning.Contact) error {
	err := expectOne(s.db.Exec(ctx, `
		UPDATE data_records SET
			cleaned_name = $2, cleaned_phone = $3, cleaned_email = $4,
			cleaned_address_line1 = $5, cleaned_address_line2 = $6, cleaned_city = $7,
			cleaned_state = $8, cleaned_postal_code = $9, cleaned_country = $10,
			cleaned_data = $11, updated_at = now()
		WHERE id = $1`,
		id, c.Name, c.Phone, c.Email, c.AddressLine1, c.AddressLine2,
		c.City, c.State, c.PostalCode, c.Country, c.Map(),
	))
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	return nil
}

// SetReview records a review decision on the given records, limited to
// batches owned by reviewerID. Returns the number of records updated.
func (s *Store) SetReview(ctx context.Context, reviewerID int64, ids []int64, status cleaning.Status, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE data_records SET status = $1, needs_review = false,
			reviewed_by = $2, reviewed_at = $3, updated_at = now()
		WHERE id = ANY($4)
		  AND batch_id IN (SELECT id FROM upload_batches WHERE user_id = $2)`,
		string(status), reviewerID, at, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("review records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ApproveCleaned approves every record of a batch whose status is cleaned.
func (s *Store) ApproveCleaned(ctx context.Context, batchID, reviewerID int64, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE data_records SET status = 'approved', needs_review = false,
			reviewed_by = $2, reviewed_at = $3, updated_at = now()
		WHERE batch_id = $1 AND status = 'cleaned'`,
		batchID, reviewerID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("approve cleaned records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordStats counts a batch's records by status.
func (s *Store) RecordStats(ctx context.Context, batchID int64) (RecordStats, error) {
	var st RecordStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'cleaned'),
			COUNT(*) FILTER (WHERE status = 'flagged'),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE status = 'accepted')
		FROM data_records WHERE batch_id = $1`, batchID,
	).Scan(&st.Total, &st.Pending, &st.Cleaned, &st.Flagged, &st.Approved, &st.Rejected, &st.Accepted)
	if err != nil {
		return RecordStats{}, fmt.Errorf("record stats: %w", err)
	}
	return st, nil
}

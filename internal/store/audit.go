package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, user_id, batch_id, record_id, action, entity_type, entity_id,
	previous_value, new_value, metadata, ip_address, user_agent, created_at`

func scanAudit(row pgx.Row) (AuditEntry, error) {
	var e AuditEntry
	err := row.Scan(
		&e.ID, &e.UserID, &e.BatchID, &e.RecordID, &e.Action, &e.EntityType, &e.EntityID,
		&e.PreviousValue, &e.NewValue, &e.Metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
	)
	return e, err
}

// InsertAudit appends an entry to the audit trail.
func (s *Store) InsertAudit(ctx context.Context, e AuditEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_logs (user_id, batch_id, record_id, action, entity_type, entity_id,
			previous_value, new_value, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.UserID, e.BatchID, e.RecordID, e.Action, e.EntityType, e.EntityID,
		e.PreviousValue, e.NewValue, e.Metadata, e.IPAddress, e.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", mapError(err))
	}
	return nil
}

// ListAudit returns matching entries, newest first.
func (s *Store) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}

	wb := NewWhereBuilder()
	wb.AddID("user_id", f.UserID)
	wb.AddID("batch_id", f.BatchID)
	wb.AddID("record_id", f.RecordID)
	wb.Add("action", f.Action)
	where, args := wb.Build()

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", wb.NextArgIndex())
	args = append(args, f.Limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeAudit deletes up to limit entries created before cutoff and returns
// how many were removed.
func (s *Store) PurgeAudit(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM audit_logs
		WHERE id IN (
			SELECT id FROM audit_logs
			WHERE created_at < $1
			ORDER BY id
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

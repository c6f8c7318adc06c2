package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
)

const issueColumns = `id, record_id, batch_id, row_index, field, severity, issue_type, message,
	original_value, suggested_value, is_resolved, resolved_by, resolved_at, created_at`

// Errors first, then warnings, then info.
const issueOrder = ` ORDER BY CASE severity WHEN 'error' THEN 0 WHEN 'warning' THEN 1 ELSE 2 END, id`

func scanIssue(row pgx.Row) (Issue, error) {
	var is Issue
	err := row.Scan(
		&is.ID, &is.RecordID, &is.BatchID, &is.RowIndex, &is.Field, &is.Severity, &is.Type, &is.Message,
		&is.OriginalValue, &is.SuggestedValue, &is.Resolved, &is.ResolvedBy, &is.ResolvedAt, &is.CreatedAt,
	)
	return is, err
}

func collectIssues(rows pgx.Rows, err error) ([]Issue, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]Issue, 0)
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// InsertIssues bulk-loads findings with COPY. Each issue must carry the id
// of its persisted record.
func (s *Store) InsertIssues(ctx context.Context, issues []cleaning.Issue) (int64, error) {
	if len(issues) == 0 {
		return 0, nil
	}
	n, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"validation_issues"},
		[]string{"record_id", "batch_id", "row_index", "field", "severity", "issue_type",
			"message", "original_value", "suggested_value", "is_resolved"},
		pgx.CopyFromSlice(len(issues), func(i int) ([]any, error) {
			is := issues[i]
			if is.RecordID == 0 {
				return nil, fmt.Errorf("issue on row %d has no record id", is.RowIndex)
			}
			return []any{
				is.RecordID, is.BatchID, is.RowIndex, string(is.Field), string(is.Severity), string(is.Type),
				is.Message, is.OriginalValue, is.SuggestedValue, is.Resolved,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("insert issues: %w", mapError(err))
	}
	return n, nil
}

// ListRecordIssues returns the findings of one record, most severe first.
func (s *Store) ListRecordIssues(ctx context.Context, recordID int64) ([]Issue, error) {
	issues, err := collectIssues(s.db.Query(ctx,
		`SELECT `+issueColumns+` FROM validation_issues WHERE record_id = $1`+issueOrder, recordID))
	if err != nil {
		return nil, fmt.Errorf("list record issues: %w", err)
	}
	return issues, nil
}

// ListBatchIssues returns a batch's findings, optionally of one severity.
func (s *Store) ListBatchIssues(ctx context.Context, batchID int64, severity cleaning.Severity) ([]Issue, error) {
	wb := NewWhereBuilder()
	wb.AddID("batch_id", batchID)
	wb.Add("severity", string(severity))
	where, args := wb.Build()

	issues, err := collectIssues(s.db.Query(ctx,
		`SELECT `+issueColumns+` FROM validation_issues`+where+issueOrder, args...))
	if err != nil {
		return nil, fmt.Errorf("list batch issues: %w", err)
	}
	return issues, nil
}

// IssueStats counts a batch's findings by severity.
func (s *Store) IssueStats(ctx context.Context, batchID int64) (IssueStats, error) {
	var st IssueStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE severity = 'error'),
			COUNT(*) FILTER (WHERE severity = 'warning'),
			COUNT(*) FILTER (WHERE severity = 'info'),
			COUNT(*) FILTER (WHERE is_resolved)
		FROM validation_issues WHERE batch_id = $1`, batchID,
	).Scan(&st.Total, &st.Error, &st.Warning, &st.Info, &st.Resolved)
	if err != nil {
		return IssueStats{}, fmt.Errorf("issue stats: %w", err)
	}
	return st, nil
}

// ResolveIssue marks an issue resolved. Issues on batches not owned by
// userID are reported as ErrNotFound.
func (s *Store) ResolveIssue(ctx context.Context, id, userID int64, at time.Time) error {
	err := expectOne(s.db.Exec(ctx, `
		UPDATE validation_issues SET is_resolved = true, resolved_by = $2, resolved_at = $3
		WHERE id = $1
		  AND batch_id IN (SELECT id FROM upload_batches WHERE user_id = $2)`,
		id, userID, at,
	))
	if err != nil {
		return fmt.Errorf("resolve issue %d: %w", id, err)
	}
	return nil
}

// DeleteBatchIssues removes a batch's findings before it is cleaned again.
func (s *Store) DeleteBatchIssues(ctx context.Context, batchID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM validation_issues WHERE batch_id = $1`, batchID)
	if err != nil {
		return 0, fmt.Errorf("delete batch issues: %w", err)
	}
	return tag.RowsAffected(), nil
}

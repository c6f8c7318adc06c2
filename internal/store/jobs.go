package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, batch_id, user_id, job_type, status, progress, total_items,
	processed_items, error_message, result, started_at, completed_at, created_at`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.BatchID, &j.UserID, &j.Type, &j.Status, &j.Progress, &j.TotalItems,
		&j.ProcessedItems, &j.ErrorMessage, &j.Result, &j.StartedAt, &j.CompletedAt, &j.CreatedAt,
	)
	return j, err
}

func collectJobs(rows pgx.Rows, err error) ([]Job, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CreateJob inserts a job. Status defaults to queued.
func (s *Store) CreateJob(ctx context.Context, nj NewJob) (Job, error) {
	if nj.Status == "" {
		nj.Status = JobQueued
	}
	j, err := scanJob(s.db.QueryRow(ctx, `
		INSERT INTO processing_jobs (batch_id, user_id, job_type, status, total_items, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		nj.BatchID, nj.UserID, nj.Type, nj.Status, nj.TotalItems, nj.StartedAt,
	))
	if err != nil {
		return Job{}, fmt.Errorf("create job: %w", mapError(err))
	}
	return j, nil
}

// UpdateJob applies the set fields of u.
func (s *Store) UpdateJob(ctx context.Context, id int64, u JobUpdate) error {
	var sb setBuilder
	if u.Status != nil {
		sb.set("status", *u.Status)
	}
	if u.Progress != nil {
		sb.set("progress", *u.Progress)
	}
	if u.ProcessedItems != nil {
		sb.set("processed_items", *u.ProcessedItems)
	}
	if u.ErrorMessage != nil {
		sb.set("error_message", *u.ErrorMessage)
	}
	if u.Result != nil {
		sb.set("result", u.Result)
	}
	if u.CompletedAt != nil {
		sb.set("completed_at", *u.CompletedAt)
	}
	if sb.empty() {
		return nil
	}

	query, args := sb.update("processing_jobs", id)
	if err := expectOne(s.db.Exec(ctx, query, args...)); err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	return nil
}

// GetJob returns the job with the given id.
func (s *Store) GetJob(ctx context.Context, id int64) (Job, error) {
	j, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1`, id))
	if err != nil {
		return Job{}, mapError(err)
	}
	return j, nil
}

// ListBatchJobs returns a batch's jobs, newest first.
func (s *Store) ListBatchJobs(ctx context.Context, batchID int64) ([]Job, error) {
	jobs, err := collectJobs(s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE batch_id = $1
		ORDER BY created_at DESC, id DESC`, batchID))
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	return jobs, nil
}

// ListActiveJobs returns a user's queued and running jobs.
func (s *Store) ListActiveJobs(ctx context.Context, userID int64) ([]Job, error) {
	jobs, err := collectJobs(s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE user_id = $1 AND status IN ('queued', 'processing')
		ORDER BY created_at DESC, id DESC`, userID))
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return jobs, nil
}

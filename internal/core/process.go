package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// progressStep is the minimum progress change, in percent, that is written
// to the job row.
const progressStep = 5

// saveChunk bounds the statements pipelined per SaveCleaning call.
const saveChunk = 500

// ProcessRequest asks for a batch to be cleaned.
type ProcessRequest struct {
	UserID  int64
	BatchID int64
	UseLLM  bool
}

// ProcessResult is stored on the completed job.
type ProcessResult struct {
	CleanedCount int                    `json:"cleanedCount"`
	ErrorCount   int                    `json:"errorCount"`
	WarningCount int                    `json:"warningCount"`
	TotalIssues  int                    `json:"totalIssues"`
	NeedsReview  int                    `json:"needsReview"`
	Enhancement  *cleaning.EnhanceStats `json:"enhancement,omitempty"`
}

func (r ProcessResult) toMap() map[string]any {
	m := map[string]any{
		"cleanedCount": r.CleanedCount,
		"errorCount":   r.ErrorCount,
		"warningCount": r.WarningCount,
		"totalIssues":  r.TotalIssues,
		"needsReview":  r.NeedsReview,
	}
	if r.Enhancement != nil {
		m["enhancement"] = map[string]any{
			"candidates":   r.Enhancement.Candidates,
			"groups":       r.Enhancement.Groups,
			"failedGroups": r.Enhancement.FailedGroups,
			"applied":      r.Enhancement.Applied,
			"boosted":      r.Enhancement.Boosted,
		}
	}
	return m
}

// ProcessBatch starts cleaning a batch in the background and returns the
// job tracking it. Returns ErrTooManyJobs if no processing slot frees up
// within the configured wait.
func (s *Service) ProcessBatch(ctx context.Context, req ProcessRequest) (store.Job, error) {
	batch, err := s.ownedBatch(ctx, req.UserID, req.BatchID)
	if err != nil {
		return store.Job{}, err
	}
	if batch.Status == store.BatchProcessing {
		return store.Job{}, ErrBatchBusy
	}
	if req.UseLLM && !s.EnhancementEnabled() {
		return store.Job{}, ErrEnhancementDisabled
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return store.Job{}, err
	}

	// The status read above can be stale; the claim is the real guard.
	claimed, err := s.repo.ClaimBatch(ctx, batch.ID)
	if err != nil {
		s.limiter.Release()
		return store.Job{}, fmt.Errorf("mark batch processing: %w", err)
	}
	if !claimed {
		s.limiter.Release()
		return store.Job{}, ErrBatchBusy
	}

	jobType := store.JobClean
	if req.UseLLM {
		jobType = store.JobLLMEnhance
	}
	job, err := s.repo.CreateJob(ctx, store.NewJob{
		BatchID:    batch.ID,
		UserID:     req.UserID,
		Type:       jobType,
		Status:     store.JobProcessing,
		TotalItems: batch.TotalRecords,
		StartedAt:  s.timestamp(),
	})
	if err != nil {
		s.limiter.Release()
		if rerr := s.repo.UpdateBatch(context.WithoutCancel(ctx), batch.ID, store.BatchUpdate{Status: ptr(batch.Status)}); rerr != nil {
			s.logger.Error("failed to restore batch status", "batch_id", batch.ID, "error", rerr)
		}
		return store.Job{}, fmt.Errorf("create job: %w", err)
	}

	// The job outlives the request but keeps its values for audit entries.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.processing.Timeout)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in batch processing",
					"job_id", job.ID,
					"batch_id", batch.ID,
					"panic", r,
				)
				s.failJob(jobCtx, job, batch.ID, fmt.Errorf("internal error: %v", r))
			}
		}()
		if err := s.runProcess(jobCtx, job, batch, req); err != nil {
			s.logger.Error("batch processing failed",
				"job_id", job.ID,
				"batch_id", batch.ID,
				"error", err,
			)
			s.failJob(jobCtx, job, batch.ID, err)
		}
	}()

	return job, nil
}

// runProcess cleans every record of the batch, optionally enhances the
// weak ones, and stores the outcome.
func (s *Service) runProcess(ctx context.Context, job store.Job, batch store.Batch, req ProcessRequest) error {
	start := time.Now()
	logger := s.logger.With("job_id", job.ID, "batch_id", batch.ID)

	stored, err := s.repo.AllRecords(ctx, batch.ID)
	if err != nil {
		return err
	}
	raws := make([]cleaning.RawRecord, len(stored))
	for i, r := range stored {
		raws[i] = r.RawRecord
	}

	lastPct := 0
	results, summary, err := cleaning.CleanBatch(ctx, raws, batch.Region, cleaning.BatchOptions{
		Workers: s.processing.Workers,
		OnProgress: func(done, total int) {
			pct := done * 100 / total
			if pct-lastPct < progressStep && done != total {
				return
			}
			lastPct = pct
			// The final write happens on completion.
			if done == total {
				pct = min(pct, 99)
			}
			if err := s.repo.UpdateJob(ctx, job.ID, store.JobUpdate{
				Progress:       ptr(pct),
				ProcessedItems: ptr(done),
			}); err != nil {
				logger.Warn("failed to update job progress", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	cleaned := make([]cleaning.CleanedRecord, len(results))
	var issues []cleaning.Issue
	for i, res := range results {
		cleaned[i] = res.Record
		issues = append(issues, res.Issues...)
	}

	result := ProcessResult{
		CleanedCount: summary.Clean,
		ErrorCount:   summary.Errors,
		WarningCount: summary.Warnings,
		TotalIssues:  len(issues),
		NeedsReview:  summary.NeedsReview,
	}

	if req.UseLLM {
		var stats cleaning.EnhanceStats
		cleaned, stats = s.enhancer.Enhance(ctx, cleaned, batch.Region)
		result.Enhancement = &stats
	}

	err = s.repo.Transact(ctx, func(tx Repository) error {
		for i := 0; i < len(cleaned); i += saveChunk {
			if err := tx.SaveCleaning(ctx, cleaned[i:min(i+saveChunk, len(cleaned))]); err != nil {
				return err
			}
		}
		if _, err := tx.DeleteBatchIssues(ctx, batch.ID); err != nil {
			return err
		}
		if _, err := tx.InsertIssues(ctx, issues); err != nil {
			return err
		}
		return tx.UpdateBatch(ctx, batch.ID, store.BatchUpdate{
			Status:         ptr(store.BatchCompleted),
			CleanedRecords: ptr(result.CleanedCount),
			ErrorRecords:   ptr(result.ErrorCount),
			WarningRecords: ptr(result.WarningCount),
			CompletedAt:    s.timestamp(),
		})
	})
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	if err := s.repo.UpdateJob(ctx, job.ID, store.JobUpdate{
		Status:         ptr(store.JobCompleted),
		Progress:       ptr(100),
		ProcessedItems: ptr(len(cleaned)),
		Result:         result.toMap(),
		CompletedAt:    s.timestamp(),
	}); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	logger.Info("batch processed",
		"records", len(cleaned),
		"cleaned", result.CleanedCount,
		"errors", result.ErrorCount,
		"warnings", result.WarningCount,
		"issues", result.TotalIssues,
		"used_llm", req.UseLLM,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.audit(ctx, AuditLogParams{
		UserID:     req.UserID,
		BatchID:    batch.ID,
		Action:     ActionClean,
		EntityType: EntityBatch,
		EntityID:   batch.ID,
		NewValue: map[string]any{
			"cleanedCount": result.CleanedCount,
			"errorCount":   result.ErrorCount,
			"warningCount": result.WarningCount,
			"usedLLM":      req.UseLLM,
		},
		Metadata: map[string]any{"jobId": job.ID},
	})

	if threshold := s.processing.NotifyThreshold; threshold > 0 && len(cleaned) > threshold {
		content := fmt.Sprintf("Batch %q with %d records has been processed. Results: %d cleaned, %d errors, %d warnings.",
			batch.FileName, len(cleaned), result.CleanedCount, result.ErrorCount, result.WarningCount)
		if err := s.notifier.Notify(ctx, "Batch Processing Complete", content); err != nil {
			logger.Warn("notification failed", "error", err)
		}
	}
	return nil
}

// failJob records a processing failure on the job and its batch. It runs
// even when ctx has already expired.
func (s *Service) failJob(ctx context.Context, job store.Job, batchID int64, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "processing timed out"
	}
	if err := s.repo.UpdateJob(ctx, job.ID, store.JobUpdate{
		Status:       ptr(store.JobFailed),
		ErrorMessage: &msg,
		CompletedAt:  s.timestamp(),
	}); err != nil {
		s.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	if err := s.repo.UpdateBatch(ctx, batchID, store.BatchUpdate{Status: ptr(store.BatchFailed)}); err != nil {
		s.logger.Error("failed to mark batch failed", "batch_id", batchID, "error", err)
	}
}

// Job returns one of the caller's jobs.
func (s *Service) Job(ctx context.Context, userID, jobID int64) (store.Job, error) {
	j, err := s.repo.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && j.UserID != userID) {
		return store.Job{}, ErrJobNotFound
	}
	if err != nil {
		return store.Job{}, fmt.Errorf("get job %d: %w", jobID, err)
	}
	return j, nil
}

// BatchJobs lists the jobs run on one of the caller's batches.
func (s *Service) BatchJobs(ctx context.Context, userID, batchID int64) ([]store.Job, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return nil, err
	}
	return s.repo.ListBatchJobs(ctx, batchID)
}

// ActiveJobs lists the caller's queued and running jobs.
func (s *Service) ActiveJobs(ctx context.Context, userID int64) ([]store.Job, error) {
	return s.repo.ListActiveJobs(ctx, userID)
}

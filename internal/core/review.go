package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// MaxBulkReview bounds the ids accepted by one bulk review call.
const MaxBulkReview = 1000

// RecordDetail is a record with its findings.
type RecordDetail struct {
	store.Record
	Issues []store.Issue `json:"issues"`
}

// CleanedPatch holds manual corrections keyed by canonical field.
type CleanedPatch map[cleaning.Field]string

// Records returns a page of a batch's records.
func (s *Service) Records(ctx context.Context, userID, batchID int64, f store.RecordFilter) ([]store.Record, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return s.repo.ListRecords(ctx, batchID, f)
}

// RecordStats counts a batch's records by status.
func (s *Service) RecordStats(ctx context.Context, userID, batchID int64) (store.RecordStats, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return store.RecordStats{}, err
	}
	return s.repo.RecordStats(ctx, batchID)
}

// ReviewQueue returns the records of a batch that need review, lowest
// quality first.
func (s *Service) ReviewQueue(ctx context.Context, userID, batchID int64) ([]store.Record, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return nil, err
	}
	return s.repo.RecordsNeedingReview(ctx, batchID)
}

// Record returns a record together with its issues.
func (s *Service) Record(ctx context.Context, userID, recordID int64) (RecordDetail, error) {
	rec, _, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return RecordDetail{}, err
	}
	issues, err := s.repo.ListRecordIssues(ctx, recordID)
	if err != nil {
		return RecordDetail{}, fmt.Errorf("list issues for record %d: %w", recordID, err)
	}
	return RecordDetail{Record: rec, Issues: issues}, nil
}

// UpdateRecord applies manual corrections to a record's cleaned values.
// Fields absent from patch keep their current value.
func (s *Service) UpdateRecord(ctx context.Context, userID, recordID int64, patch CleanedPatch) (store.Record, error) {
	if len(patch) == 0 {
		return store.Record{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	for f := range patch {
		if !f.IsCanonical() {
			return store.Record{}, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, f)
		}
	}

	rec, b, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return store.Record{}, err
	}

	previous := make(map[string]any, len(patch))
	changed := make(map[string]any, len(patch))
	updated := rec.Cleaned
	for f, v := range patch {
		previous[string(f)] = rec.Cleaned.Get(f)
		changed[string(f)] = v
		updated.Set(f, v)
	}

	if err := s.repo.UpdateCleanedFields(ctx, recordID, updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Record{}, ErrRecordNotFound
		}
		return store.Record{}, err
	}
	rec.Cleaned = updated
	rec.RebuildCleanedData()

	s.audit(ctx, AuditLogParams{
		UserID:        userID,
		BatchID:       b.ID,
		RecordID:      recordID,
		Action:        ActionUpdate,
		EntityType:    EntityRecord,
		EntityID:      recordID,
		PreviousValue: previous,
		NewValue:      changed,
	})
	return rec, nil
}

// ApproveRecord marks a record approved.
func (s *Service) ApproveRecord(ctx context.Context, userID, recordID int64) error {
	return s.reviewOne(ctx, userID, recordID, cleaning.StatusApproved, ActionApprove)
}

// RejectRecord marks a record rejected.
func (s *Service) RejectRecord(ctx context.Context, userID, recordID int64) error {
	return s.reviewOne(ctx, userID, recordID, cleaning.StatusRejected, ActionReject)
}

func (s *Service) reviewOne(ctx context.Context, userID, recordID int64, status cleaning.Status, action AuditAction) error {
	rec, _, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return err
	}
	n, err := s.repo.SetReview(ctx, userID, []int64{recordID}, status, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}

	s.audit(ctx, AuditLogParams{
		UserID:        userID,
		BatchID:       rec.BatchID,
		RecordID:      recordID,
		Action:        action,
		EntityType:    EntityRecord,
		EntityID:      recordID,
		PreviousValue: map[string]any{"status": string(rec.Status)},
		NewValue:      map[string]any{"status": string(status)},
	})
	return nil
}

// BulkApprove approves the given records and returns how many changed.
// Records on batches the caller does not own are skipped.
func (s *Service) BulkApprove(ctx context.Context, userID int64, ids []int64) (int64, error) {
	return s.reviewMany(ctx, userID, ids, cleaning.StatusApproved, ActionApprove)
}

// BulkReject rejects the given records and returns how many changed.
func (s *Service) BulkReject(ctx context.Context, userID int64, ids []int64) (int64, error) {
	return s.reviewMany(ctx, userID, ids, cleaning.StatusRejected, ActionReject)
}

func (s *Service) reviewMany(ctx context.Context, userID int64, ids []int64, status cleaning.Status, action AuditAction) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no record ids", ErrInvalidInput)
	}
	if len(ids) > MaxBulkReview {
		return 0, fmt.Errorf("%w: at most %d records per request", ErrInvalidInput, MaxBulkReview)
	}

	n, err := s.repo.SetReview(ctx, userID, ids, status, s.now())
	if err != nil {
		return 0, err
	}

	s.audit(ctx, AuditLogParams{
		UserID:     userID,
		Action:     action,
		EntityType: EntityRecord,
		NewValue: map[string]any{
			"status":    string(status),
			"recordIds": ids,
			"count":     n,
		},
	})
	return n, nil
}

// AcceptAllCleaned approves every cleaned record of a batch.
func (s *Service) AcceptAllCleaned(ctx context.Context, userID, batchID int64) (int64, error) {
	if _, err := s.ownedBatch(ctx, userID, batchID); err != nil {
		return 0, err
	}
	n, err := s.repo.ApproveCleaned(ctx, batchID, userID, s.now())
	if err != nil {
		return 0, err
	}

	s.audit(ctx, AuditLogParams{
		UserID:     userID,
		BatchID:    batchID,
		Action:     ActionApprove,
		EntityType: EntityBatch,
		EntityID:   batchID,
		NewValue:   map[string]any{"action": "accept_all_cleaned", "count": n},
	})
	return n, nil
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package core

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// memRepo is an in-memory Repository for service tests. Transact does not
// roll back.
type memRepo struct {
	mu     sync.Mutex
	nextID int64

	batches map[int64]store.Batch
	records map[int64]store.Record
	issues  map[int64]store.Issue
	jobs    map[int64]store.Job
	keys    map[int64]store.APIKey
	audit   []store.AuditEntry

	insertErr  error
	purgeCalls int
}

var _ Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		batches: make(map[int64]store.Batch),
		records: make(map[int64]store.Record),
		issues:  make(map[int64]store.Issue),
		jobs:    make(map[int64]store.Job),
		keys:    make(map[int64]store.APIKey),
	}
}

func (m *memRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memRepo) Ping(context.Context) error { return nil }

func (m *memRepo) Transact(_ context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *memRepo) CreateBatch(_ context.Context, nb store.NewBatch) (store.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	b := store.Batch{
		ID:              m.id(),
		UserID:          nb.UserID,
		FileName:        nb.FileName,
		OriginalFileURL: nb.OriginalFileURL,
		FileSize:        nb.FileSize,
		TotalRecords:    nb.TotalRecords,
		Status:          store.BatchPending,
		Region:          nb.Region,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.batches[b.ID] = b
	return b, nil
}

func (m *memRepo) GetBatch(_ context.Context, id int64) (store.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return store.Batch{}, store.ErrNotFound
	}
	return b, nil
}

func (m *memRepo) ListBatches(_ context.Context, userID int64, limit int) ([]store.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Batch
	for _, b := range m.batches {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) UpdateBatch(_ context.Context, id int64, u store.BatchUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return store.ErrNotFound
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.TotalRecords != nil {
		b.TotalRecords = *u.TotalRecords
	}
	if u.CleanedRecords != nil {
		b.CleanedRecords = *u.CleanedRecords
	}
	if u.ErrorRecords != nil {
		b.ErrorRecords = *u.ErrorRecords
	}
	if u.WarningRecords != nil {
		b.WarningRecords = *u.WarningRecords
	}
	if u.ProcessedFileURL != nil {
		b.ProcessedFileURL = *u.ProcessedFileURL
	}
	if u.CompletedAt != nil {
		b.CompletedAt = u.CompletedAt
	}
	m.batches[id] = b
	return nil
}

func (m *memRepo) ClaimBatch(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return false, nil
	}
	if b.Status == store.BatchProcessing {
		return false, nil
	}
	b.Status = store.BatchProcessing
	m.batches[id] = b
	return true, nil
}

func (m *memRepo) BatchStats(_ context.Context, userID int64) (store.BatchStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s store.BatchStats
	for _, b := range m.batches {
		if b.UserID != userID {
			continue
		}
		s.Total++
		switch b.Status {
		case store.BatchPending:
			s.Pending++
		case store.BatchProcessing:
			s.Processing++
		case store.BatchCompleted:
			s.Completed++
		case store.BatchFailed:
			s.Failed++
		}
	}
	return s, nil
}

func (m *memRepo) FailInterruptedWork(_ context.Context, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.jobs {
		if j.Status == store.JobQueued || j.Status == store.JobProcessing {
			j.Status = store.JobFailed
			j.ErrorMessage = reason
			m.jobs[id] = j
			n++
		}
	}
	for id, b := range m.batches {
		if b.Status == store.BatchProcessing {
			b.Status = store.BatchFailed
			m.batches[id] = b
		}
	}
	return n, nil
}

func (m *memRepo) InsertRecords(_ context.Context, records []cleaning.RawRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	now := time.Now()
	for _, r := range records {
		r.ID = m.id()
		m.records[r.ID] = store.Record{
			CleanedRecord: cleaning.CleanedRecord{RawRecord: r, Status: cleaning.StatusPending},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return int64(len(records)), nil
}

func (m *memRepo) GetRecord(_ context.Context, id int64) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) batchRecords(batchID int64, keep func(store.Record) bool) []store.Record {
	var out []store.Record
	for _, r := range m.records {
		if r.BatchID == batchID && (keep == nil || keep(r)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

func (m *memRepo) ListRecords(_ context.Context, batchID int64, f store.RecordFilter) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.batchRecords(batchID, func(r store.Record) bool {
		if f.Status != "" && r.Status != f.Status {
			return false
		}
		return f.NeedsReview == nil || r.NeedsReview == *f.NeedsReview
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = store.DefaultRecordLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) AllRecords(_ context.Context, batchID int64) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchRecords(batchID, nil), nil
}

func (m *memRepo) RecordsNeedingReview(_ context.Context, batchID int64) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.batchRecords(batchID, func(r store.Record) bool { return r.NeedsReview })
	sort.SliceStable(out, func(i, j int) bool { return out[i].QualityScore < out[j].QualityScore })
	return out, nil
}

func (m *memRepo) SaveCleaning(_ context.Context, records []cleaning.CleanedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		cur, ok := m.records[rec.ID]
		if !ok {
			return fmt.Errorf("save record %d: %w", rec.ID, store.ErrNotFound)
		}
		cur.CleanedRecord = rec
		cur.UpdatedAt = time.Now()
		m.records[rec.ID] = cur
	}
	return nil
}

func (m *memRepo) UpdateCleanedFields(_ context.Context, id int64, c cleaning.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Cleaned = c
	r.RebuildCleanedData()
	m.records[id] = r
	return nil
}

func (m *memRepo) SetReview(_ context.Context, reviewerID int64, ids []int64, status cleaning.Status, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		r, ok := m.records[id]
		if !ok || m.batches[r.BatchID].UserID != reviewerID {
			continue
		}
		r.Status = status
		r.NeedsReview = false
		r.ReviewedBy = &reviewerID
		r.ReviewedAt = &at
		m.records[id] = r
		n++
	}
	return n, nil
}

func (m *memRepo) ApproveCleaned(_ context.Context, batchID, reviewerID int64, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.BatchID != batchID || r.Status != cleaning.StatusCleaned {
			continue
		}
		r.Status = cleaning.StatusApproved
		r.ReviewedBy = &reviewerID
		r.ReviewedAt = &at
		m.records[id] = r
		n++
	}
	return n, nil
}

func (m *memRepo) RecordStats(_ context.Context, batchID int64) (store.RecordStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s store.RecordStats
	for _, r := range m.batchRecords(batchID, nil) {
		s.Total++
		switch r.Status {
		case cleaning.StatusPending:
			s.Pending++
		case cleaning.StatusCleaned:
			s.Cleaned++
		case cleaning.StatusFlagged:
			s.Flagged++
		case cleaning.StatusApproved:
			s.Approved++
		case cleaning.StatusRejected:
			s.Rejected++
		case cleaning.StatusAccepted:
			s.Accepted++
		}
	}
	return s, nil
}

func (m *memRepo) InsertIssues(_ context.Context, issues []cleaning.Issue) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, is := range issues {
		if is.RecordID == 0 {
			return 0, fmt.Errorf("issue on row %d has no record id", is.RowIndex)
		}
		is.ID = m.id()
		m.issues[is.ID] = store.Issue{Issue: is, CreatedAt: time.Now()}
	}
	return int64(len(issues)), nil
}

func (m *memRepo) DeleteBatchIssues(_ context.Context, batchID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, is := range m.issues {
		if is.BatchID == batchID {
			delete(m.issues, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) sortedIssues(keep func(store.Issue) bool) []store.Issue {
	var out []store.Issue
	for _, is := range m.issues {
		if keep(is) {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRepo) ListRecordIssues(_ context.Context, recordID int64) ([]store.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIssues(func(is store.Issue) bool { return is.RecordID == recordID }), nil
}

func (m *memRepo) ListBatchIssues(_ context.Context, batchID int64, severity cleaning.Severity) ([]store.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIssues(func(is store.Issue) bool {
		return is.BatchID == batchID && (severity == "" || is.Severity == severity)
	}), nil
}

func (m *memRepo) IssueStats(_ context.Context, batchID int64) (store.IssueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s store.IssueStats
	for _, is := range m.issues {
		if is.BatchID != batchID {
			continue
		}
		s.Total++
		switch is.Severity {
		case cleaning.SeverityError:
			s.Error++
		case cleaning.SeverityWarning:
			s.Warning++
		case cleaning.SeverityInfo:
			s.Info++
		}
		if is.Resolved {
			s.Resolved++
		}
	}
	return s, nil
}

func (m *memRepo) ResolveIssue(_ context.Context, id, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	is, ok := m.issues[id]
	if !ok || m.batches[is.BatchID].UserID != userID {
		return store.ErrNotFound
	}
	is.Resolved = true
	is.ResolvedBy = &userID
	is.ResolvedAt = &at
	m.issues[id] = is
	return nil
}

func (m *memRepo) InsertAudit(_ context.Context, e store.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

func matchID(want int64, got *int64) bool {
	return want == 0 || (got != nil && *got == want)
}

func (m *memRepo) ListAudit(_ context.Context, f store.AuditFilter) ([]store.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := f.Limit
	if limit <= 0 {
		limit = store.DefaultAuditLimit
	}
	var out []store.AuditEntry
	for _, e := range slices.Backward(m.audit) {
		if !matchID(f.UserID, e.UserID) || !matchID(f.BatchID, e.BatchID) || !matchID(f.RecordID, e.RecordID) {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRepo) PurgeAudit(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCalls++
	var (
		kept []store.AuditEntry
		n    int64
	)
	for _, e := range m.audit {
		if e.CreatedAt.Before(cutoff) && n < int64(limit) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.audit = kept
	return n, nil
}

func (m *memRepo) CreateJob(_ context.Context, nj store.NewJob) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := nj.Status
	if status == "" {
		status = store.JobQueued
	}
	j := store.Job{
		ID:         m.id(),
		BatchID:    nj.BatchID,
		UserID:     nj.UserID,
		Type:       nj.Type,
		Status:     status,
		TotalItems: nj.TotalItems,
		StartedAt:  nj.StartedAt,
		CreatedAt:  time.Now(),
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *memRepo) UpdateJob(_ context.Context, id int64, u store.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.ProcessedItems != nil {
		j.ProcessedItems = *u.ProcessedItems
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
	m.jobs[id] = j
	return nil
}

func (m *memRepo) GetJob(_ context.Context, id int64) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return store.Job{}, store.ErrNotFound
	}
	return j, nil
}

func (m *memRepo) ListBatchJobs(_ context.Context, batchID int64) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Job
	for _, j := range m.jobs {
		if j.BatchID == batchID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) ListActiveJobs(_ context.Context, userID int64) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Job
	for _, j := range m.jobs {
		if j.UserID == userID && (j.Status == store.JobQueued || j.Status == store.JobProcessing) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memRepo) CreateAPIKey(_ context.Context, nk store.NewAPIKey) (store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == nk.KeyHash {
			return store.APIKey{}, fmt.Errorf("%w: key_hash", store.ErrDuplicate)
		}
	}
	k := store.APIKey{
		ID:          m.id(),
		UserID:      nk.UserID,
		Name:        nk.Name,
		KeyHash:     nk.KeyHash,
		KeyPrefix:   nk.KeyPrefix,
		Permissions: nk.Permissions,
		ExpiresAt:   nk.ExpiresAt,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	m.keys[k.ID] = k
	return k, nil
}

func (m *memRepo) ListAPIKeys(_ context.Context, userID int64) ([]store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.APIKey
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]store.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix && k.IsActive {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memRepo) DeactivateAPIKey(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.UserID != userID {
		return store.ErrNotFound
	}
	k.IsActive = false
	m.keys[id] = k
	return nil
}

func (m *memRepo) TouchAPIKey(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return store.ErrNotFound
	}
	k.LastUsedAt = &at
	m.keys[id] = k
	return nil
}

func (m *memRepo) DashboardStats(ctx context.Context, userID int64) (store.DashboardStats, error) {
	batches, err := m.BatchStats(ctx, userID)
	if err != nil {
		return store.DashboardStats{}, err
	}
	recent, err := m.ListBatches(ctx, userID, 5)
	if err != nil {
		return store.DashboardStats{}, err
	}
	var totals store.RecordTotals
	for _, b := range recent {
		totals.Total += int64(b.TotalRecords)
		totals.Cleaned += int64(b.CleanedRecords)
		totals.Errors += int64(b.ErrorRecords)
		totals.Warnings += int64(b.WarningRecords)
	}
	return store.DashboardStats{Batches: batches, Records: totals, RecentBatches: recent}, nil
}

// auditActions returns the recorded actions, oldest first.
func (m *memRepo) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.audit))
	for i, e := range m.audit {
		out[i] = e.Action
	}
	return out
}

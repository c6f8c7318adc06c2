package web

import (
	"context"
	"io"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// Service is the subset of *core.Service the handlers use.
type Service interface {
	Ping(ctx context.Context) error
	Regions() []core.RegionInfo
	EnhancementEnabled() bool
	Limiter() *core.ProcessLimiter
	DashboardStats(ctx context.Context, userID int64) (store.DashboardStats, error)

	Batches(ctx context.Context, userID int64, limit int) ([]store.Batch, error)
	BatchStats(ctx context.Context, userID int64) (store.BatchStats, error)
	UploadBatch(ctx context.Context, req core.UploadRequest) (core.UploadResult, error)
	Batch(ctx context.Context, userID, batchID int64) (store.Batch, error)
	DeleteBatch(ctx context.Context, userID, batchID int64) error

	ProcessBatch(ctx context.Context, req core.ProcessRequest) (store.Job, error)
	BatchJobs(ctx context.Context, userID, batchID int64) ([]store.Job, error)
	ActiveJobs(ctx context.Context, userID int64) ([]store.Job, error)
	Job(ctx context.Context, userID, jobID int64) (store.Job, error)

	Records(ctx context.Context, userID, batchID int64, f store.RecordFilter) ([]store.Record, error)
	RecordStats(ctx context.Context, userID, batchID int64) (store.RecordStats, error)
	ReviewQueue(ctx context.Context, userID, batchID int64) ([]store.Record, error)
	AcceptAllCleaned(ctx context.Context, userID, batchID int64) (int64, error)
	Record(ctx context.Context, userID, recordID int64) (core.RecordDetail, error)
	UpdateRecord(ctx context.Context, userID, recordID int64, patch core.CleanedPatch) (store.Record, error)
	ApproveRecord(ctx context.Context, userID, recordID int64) error
	RejectRecord(ctx context.Context, userID, recordID int64) error
	BulkApprove(ctx context.Context, userID int64, ids []int64) (int64, error)
	BulkReject(ctx context.Context, userID int64, ids []int64) (int64, error)

	Issues(ctx context.Context, userID, batchID int64, severity cleaning.Severity) ([]store.Issue, error)
	IssueStats(ctx context.Context, userID, batchID int64) (store.IssueStats, error)
	ResolveIssue(ctx context.Context, userID, issueID int64) error

	ListAudit(ctx context.Context, userID int64, q core.AuditQuery) ([]store.AuditEntry, error)

	ExportBatch(ctx context.Context, req core.ExportRequest) (core.ExportResult, error)
	OpenFile(ctx context.Context, userID int64, key string) (io.ReadCloser, error)

	APIKeys(ctx context.Context, userID int64) ([]store.APIKey, error)
	CreateAPIKey(ctx context.Context, req core.CreateAPIKeyRequest) (core.CreatedAPIKey, error)
	RevokeAPIKey(ctx context.Context, userID, keyID int64) error
	AuthenticateAPIKey(ctx context.Context, key string) (store.APIKey, error)
}

var _ Service = (*core.Service)(nil)

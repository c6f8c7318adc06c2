package store

import (
	"net/netip"
	"time"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
)

// BatchStatus is the lifecycle state of an upload batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is one uploaded file.
type Batch struct {
	ID               int64       `json:"id"`
	UserID           int64       `json:"userId"`
	FileName         string      `json:"fileName"`
	OriginalFileURL  string      `json:"originalFileUrl"`
	FileSize         int64       `json:"fileSize"`
	TotalRecords     int         `json:"totalRecords"`
	CleanedRecords   int         `json:"cleanedRecords"`
	ErrorRecords     int         `json:"errorRecords"`
	WarningRecords   int         `json:"warningRecords"`
	Status           BatchStatus `json:"status"`
	Region           string      `json:"region"`
	ProcessedFileURL string      `json:"processedFileUrl"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	CompletedAt      *time.Time  `json:"completedAt,omitempty"`
}

// NewBatch holds the columns set when a batch is created.
type NewBatch struct {
	UserID          int64
	FileName        string
	OriginalFileURL string
	FileSize        int64
	TotalRecords    int
	Region          string
}

// BatchUpdate sets only its non-nil fields.
type BatchUpdate struct {
	Status           *BatchStatus
	TotalRecords     *int
	CleanedRecords   *int
	ErrorRecords     *int
	WarningRecords   *int
	ProcessedFileURL *string
	CompletedAt      *time.Time
}

// BatchStats counts a user's batches by status.
type BatchStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Record is a persisted row together with its latest cleaning outcome.
type Record struct {
	cleaning.CleanedRecord
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordFilter narrows ListRecords. Zero values match everything.
type RecordFilter struct {
	Status      cleaning.Status
	NeedsReview *bool
	Limit       int
	Offset      int
}

// DefaultRecordLimit applies when RecordFilter.Limit is zero.
const DefaultRecordLimit = 1000

// RecordStats counts a batch's records by status.
type RecordStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Cleaned  int64 `json:"cleaned"`
	Flagged  int64 `json:"flagged"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Accepted int64 `json:"accepted"`
}

// Issue is a persisted validation finding.
type Issue struct {
	cleaning.Issue
	ResolvedBy *int64     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// IssueStats counts a batch's issues by severity.
type IssueStats struct {
	Total    int64 `json:"total"`
	Error    int64 `json:"error"`
	Warning  int64 `json:"warning"`
	Info     int64 `json:"info"`
	Resolved int64 `json:"resolved"`
}

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID            int64          `json:"id"`
	UserID        *int64         `json:"userId,omitempty"`
	BatchID       *int64         `json:"batchId,omitempty"`
	RecordID      *int64         `json:"recordId,omitempty"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entityType"`
	EntityID      *int64         `json:"entityId,omitempty"`
	PreviousValue map[string]any `json:"previousValue,omitempty"`
	NewValue      map[string]any `json:"newValue,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	IPAddress     *netip.Addr    `json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// AuditFilter narrows ListAudit. Zero ids match everything.
type AuditFilter struct {
	UserID   int64
	BatchID  int64
	RecordID int64
	Action   string
	Limit    int
}

// DefaultAuditLimit applies when AuditFilter.Limit is zero.
const DefaultAuditLimit = 100

// JobType names what a processing job does.
type JobType string

const (
	JobClean      JobType = "clean"
	JobValidate   JobType = "validate"
	JobExport     JobType = "export"
	JobLLMEnhance JobType = "llm_enhance"
)

// JobStatus is the lifecycle state of a processing job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job tracks one background operation on a batch.
type Job struct {
	ID             int64          `json:"id"`
	BatchID        int64          `json:"batchId"`
	UserID         int64          `json:"userId"`
	Type           JobType        `json:"jobType"`
	Status         JobStatus      `json:"status"`
	Progress       int            `json:"progress"`
	TotalItems     int            `json:"totalItems"`
	ProcessedItems int            `json:"processedItems"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	Result         map[string]any `json:"result,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// NewJob holds the columns set when a job is created.
type NewJob struct {
	BatchID    int64
	UserID     int64
	Type       JobType
	Status     JobStatus
	TotalItems int
	StartedAt  *time.Time
}

// JobUpdate sets only its non-nil fields.
type JobUpdate struct {
	Status         *JobStatus
	Progress       *int
	ProcessedItems *int
	ErrorMessage   *string
	Result         map[string]any
	CompletedAt    *time.Time
}

// APIKey is an issued key. Only the hash of the secret is stored.
type APIKey struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Name        string     `json:"name"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"keyPrefix"`
	Permissions []string   `json:"permissions"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// NewAPIKey holds the columns set when a key is issued.
type NewAPIKey struct {
	UserID      int64
	Name        string
	KeyHash     string
	KeyPrefix   string
	Permissions []string
	ExpiresAt   *time.Time
}

// RecordTotals sums record counters across a user's batches.
type RecordTotals struct {
	Total    int64 `json:"total"`
	Cleaned  int64 `json:"cleaned"`
	Errors   int64 `json:"errors"`
	Warnings int64 `json:"warnings"`
}

// DashboardStats summarises a user's activity.
type DashboardStats struct {
	Batches       BatchStats   `json:"batches"`
	Records       RecordTotals `json:"records"`
	RecentBatches []Batch      `json:"recentBatches"`
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// Service errors. Handlers map them to status codes and user messages.
var (
	ErrBatchNotFound       = errors.New("batch not found")
	ErrRecordNotFound      = errors.New("record not found")
	ErrIssueNotFound       = errors.New("issue not found")
	ErrJobNotFound         = errors.New("job not found")
	ErrAPIKeyNotFound      = errors.New("api key not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBatchBusy           = errors.New("batch is already processing")
	ErrFileTooLarge        = errors.New("file too large")
	ErrNoFile              = errors.New("no file provided")
	ErrEmptyFile           = errors.New("empty file")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUnsupportedRegion   = errors.New("unsupported region")
	ErrInvalidInput        = errors.New("invalid input")
	ErrEnhancementDisabled = errors.New("llm enhancement is not configured")
)

// Repository is the persistence the service needs. *store.Store satisfies
// it through NewRepository.
type Repository interface {
	Ping(ctx context.Context) error
	Transact(ctx context.Context, fn func(Repository) error) error

	CreateBatch(ctx context.Context, nb store.NewBatch) (store.Batch, error)
	GetBatch(ctx context.Context, id int64) (store.Batch, error)
	ListBatches(ctx context.Context, userID int64, limit int) ([]store.Batch, error)
	UpdateBatch(ctx context.Context, id int64, u store.BatchUpdate) error
	ClaimBatch(ctx context.Context, id int64) (bool, error)
	BatchStats(ctx context.Context, userID int64) (store.BatchStats, error)
	FailInterruptedWork(ctx context.Context, reason string) (int64, error)

	InsertRecords(ctx context.Context, records []cleaning.RawRecord) (int64, error)
	GetRecord(ctx context.Context, id int64) (store.Record, error)
	ListRecords(ctx context.Context, batchID int64, f store.RecordFilter) ([]store.Record, error)
	AllRecords(ctx context.Context, batchID int64) ([]store.Record, error)
	RecordsNeedingReview(ctx context.Context, batchID int64) ([]store.Record, error)
	SaveCleaning(ctx context.Context, records []cleaning.CleanedRecord) error
	UpdateCleanedFields(ctx context.Context, id int64, c cleaning.Contact) error
	SetReview(ctx context.Context, reviewerID int64, ids []int64, status cleaning.Status, at time.Time) (int64, error)
	ApproveCleaned(ctx context.Context, batchID, reviewerID int64, at time.Time) (int64, error)
	RecordStats(ctx context.Context, batchID int64) (store.RecordStats, error)

	InsertIssues(ctx context.Context, issues []cleaning.Issue) (int64, error)
	DeleteBatchIssues(ctx context.Context, batchID int64) (int64, error)
	ListRecordIssues(ctx context.Context, recordID int64) ([]store.Issue, error)
	ListBatchIssues(ctx context.Context, batchID int64, severity cleaning.Severity) ([]store.Issue, error)
	IssueStats(ctx context.Context, batchID int64) (store.IssueStats, error)
	ResolveIssue(ctx context.Context, id, userID int64, at time.Time) error

	InsertAudit(ctx context.Context, e store.AuditEntry) error
	ListAudit(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error)
	PurgeAudit(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	CreateJob(ctx context.Context, nj store.NewJob) (store.Job, error)
	UpdateJob(ctx context.Context, id int64, u store.JobUpdate) error
	GetJob(ctx context.Context, id int64) (store.Job, error)
	ListBatchJobs(ctx context.Context, batchID int64) ([]store.Job, error)
	ListActiveJobs(ctx context.Context, userID int64) ([]store.Job, error)

	CreateAPIKey(ctx context.Context, nk store.NewAPIKey) (store.APIKey, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]store.APIKey, error)
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]store.APIKey, error)
	DeactivateAPIKey(ctx context.Context, id, userID int64) error
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error

	DashboardStats(ctx context.Context, userID int64) (store.DashboardStats, error)
}

type pgRepository struct {
	*store.Store
}

// NewRepository adapts a store to Repository.
func NewRepository(s *store.Store) Repository {
	return pgRepository{s}
}

func (r pgRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	return r.WithTx(ctx, func(tx *store.Store) error {
		return fn(pgRepository{tx})
	})
}

// Options configures a Service.
type Options struct {
	Upload     config.UploadConfig
	Processing config.ProcessingConfig

	// Enhancer runs the correction pass. Nil disables it.
	Enhancer *cleaning.Enhancer
	Notifier Notifier
	Logger   *slog.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Service provides the business logic for uploading, cleaning, reviewing
// and exporting contact batches.
type Service struct {
	repo     Repository
	files    storage.Store
	enhancer *cleaning.Enhancer
	notifier Notifier
	limiter  *ProcessLimiter
	logger   *slog.Logger
	now      func() time.Time

	upload     config.UploadConfig
	processing config.ProcessingConfig
}

// NewService creates a new Service instance.
func NewService(repo Repository, files storage.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Upload.DefaultRegion == "" {
		opts.Upload.DefaultRegion = string(cleaning.RegionSingapore)
	}
	if opts.Processing.Timeout <= 0 {
		opts.Processing.Timeout = DefaultProcessTimeout
	}

	return &Service{
		repo:       repo,
		files:      files,
		enhancer:   opts.Enhancer,
		notifier:   opts.Notifier,
		limiter:    NewProcessLimiter(opts.Processing.MaxConcurrent, opts.Processing.MaxWaitTime),
		logger:     opts.Logger,
		now:        opts.Now,
		upload:     opts.Upload,
		processing: opts.Processing,
	}
}

// Limiter exposes the processing limiter for shutdown and monitoring.
func (s *Service) Limiter() *ProcessLimiter {
	return s.limiter
}

// EnhancementEnabled reports whether the correction pass is configured.
func (s *Service) EnhancementEnabled() bool {
	return s.enhancer != nil && s.enhancer.Source != nil
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// RegionInfo describes one supported region.
type RegionInfo struct {
	Key    cleaning.Region       `json:"key"`
	Config cleaning.RegionConfig `json:"config"`
}

// Regions lists the supported regions in display order.
func (s *Service) Regions() []RegionInfo {
	configs := cleaning.Configs()
	regions := cleaning.SupportedRegions()
	out := make([]RegionInfo, len(regions))
	for i, r := range regions {
		out[i] = RegionInfo{Key: r, Config: configs[r]}
	}
	return out
}

// RecoverInterrupted fails jobs and batches that a previous process left
// running. Call once at startup before serving requests.
func (s *Service) RecoverInterrupted(ctx context.Context) error {
	n, err := s.repo.FailInterruptedWork(ctx, "interrupted by server restart")
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("failed interrupted jobs", "jobs", n)
	}
	return nil
}

// ownedBatch loads a batch and checks that userID owns it. Batches owned
// by someone else are reported as not found.
func (s *Service) ownedBatch(ctx context.Context, userID, batchID int64) (store.Batch, error) {
	b, err := s.repo.GetBatch(ctx, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return store.Batch{}, fmt.Errorf("get batch %d: %w", batchID, err)
	}
	if b.UserID != userID {
		return store.Batch{}, ErrBatchNotFound
	}
	return b, nil
}

// ownedRecord loads a record and checks ownership through its batch.
func (s *Service) ownedRecord(ctx context.Context, userID, recordID int64) (store.Record, store.Batch, error) {
	rec, err := s.repo.GetRecord(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, store.Batch{}, ErrRecordNotFound
	}
	if err != nil {
		return store.Record{}, store.Batch{}, fmt.Errorf("get record %d: %w", recordID, err)
	}
	b, err := s.ownedBatch(ctx, userID, rec.BatchID)
	if errors.Is(err, ErrBatchNotFound) {
		return store.Record{}, store.Batch{}, ErrRecordNotFound
	}
	if err != nil {
		return store.Record{}, store.Batch{}, err
	}
	return rec, b, nil
}

func ptr[T any](v T) *T { return &v }

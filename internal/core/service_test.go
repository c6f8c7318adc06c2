package core

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

const (
	testUser  int64 = 7
	otherUser int64 = 8
)

// Row 0 needs cosmetic cleaning, row 1 is missing its name.
const sampleCSV = "Name,Phone,Email,Address,Postal Code\n" +
	"john doe,91234567,JOHN@EXAMPLE.COM,123 main street,123456\n" +
	",81234567,jane@example.com,1 Raffles Place,048616\n" +
	"Tan Ah Kow,+65 6123 4567,tan@example.com,10 Bayfront Avenue,018956\n"

type testEnv struct {
	svc  *Service
	repo *memRepo
	dir  string
}

func newTestEnv(t *testing.T, opts Options) testEnv {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocal(dir)
	require.NoError(t, err)
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	repo := newMemRepo()
	return testEnv{svc: NewService(repo, files, opts), repo: repo, dir: dir}
}

func (e testEnv) upload(t *testing.T) UploadResult {
	t.Helper()
	res, err := e.svc.UploadBatch(context.Background(), UploadRequest{
		UserID:   testUser,
		FileName: "contacts.csv",
		Data:     []byte(sampleCSV),
		Region:   "singapore",
	})
	require.NoError(t, err)
	return res
}

func (e testEnv) process(t *testing.T, batchID int64, useLLM bool) store.Job {
	t.Helper()
	job, err := e.svc.ProcessBatch(context.Background(), ProcessRequest{
		UserID:  testUser,
		BatchID: batchID,
		UseLLM:  useLLM,
	})
	require.NoError(t, err)
	e.waitIdle(t)

	done, err := e.svc.Job(context.Background(), testUser, job.ID)
	require.NoError(t, err)
	return done
}

func (e testEnv) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.svc.Limiter().WaitForDrain(ctx))
}

func (e testEnv) records(t *testing.T, batchID int64) []store.Record {
	t.Helper()
	recs, err := e.repo.AllRecords(context.Background(), batchID)
	require.NoError(t, err)
	return recs
}

func TestUploadBatch(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	res := env.upload(t)
	assert.Equal(t, 3, res.RecordCount)
	assert.True(t, strings.HasPrefix(res.FileURL, "/api/files/uploads/7/"), res.FileURL)

	b, err := env.svc.Batch(ctx, testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.BatchPending, b.Status)
	assert.Equal(t, 3, b.TotalRecords)
	assert.Equal(t, "singapore", b.Region)
	assert.Equal(t, int64(len(sampleCSV)), b.FileSize)

	recs := env.records(t, res.BatchID)
	require.Len(t, recs, 3)
	for i, r := range recs {
		assert.Equal(t, i, r.RowIndex)
		assert.Equal(t, cleaning.StatusPending, r.Status)
	}
	assert.Equal(t, "john doe", recs[0].Name)
	assert.Equal(t, "123 main street", recs[0].AddressLine1)
	assert.Equal(t, "123456", recs[0].PostalCode)
	assert.Equal(t, "JOHN@EXAMPLE.COM", recs[0].OriginalData["Email"])

	key, ok := storage.KeyFromURL(res.FileURL)
	require.True(t, ok)
	rc, err := env.svc.OpenFile(ctx, testUser, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(data))

	_, err = env.svc.Batch(ctx, otherUser, res.BatchID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	assert.Equal(t, []string{"upload"}, env.repo.auditActions())
}

func TestUploadBatch_DefaultRegion(t *testing.T) {
	env := newTestEnv(t, Options{Upload: config.UploadConfig{DefaultRegion: "malaysia"}})

	res, err := env.svc.UploadBatch(context.Background(), UploadRequest{
		UserID:   testUser,
		FileName: "contacts.csv",
		Data:     []byte(sampleCSV),
	})
	require.NoError(t, err)

	b, err := env.svc.Batch(context.Background(), testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "malaysia", b.Region)
}

func TestUploadBatch_Rejects(t *testing.T) {
	env := newTestEnv(t, Options{Upload: config.UploadConfig{MaxFileSize: 1024}})

	tests := []struct {
		name string
		req  UploadRequest
		want error
	}{
		{"no data", UploadRequest{FileName: "a.csv"}, ErrNoFile},
		{"too large", UploadRequest{FileName: "a.csv", Data: make([]byte, 2048)}, ErrFileTooLarge},
		{"unknown region", UploadRequest{FileName: "a.csv", Data: []byte(sampleCSV), Region: "atlantis"}, ErrUnsupportedRegion},
		{"unsupported extension", UploadRequest{FileName: "a.pdf", Data: []byte(sampleCSV)}, ErrUnsupportedFileType},
		{"unsupported override", UploadRequest{FileName: "a.csv", Data: []byte(sampleCSV), FileType: "pdf"}, ErrUnsupportedFileType},
		{"header only", UploadRequest{FileName: "a.csv", Data: []byte("Name,Phone\n")}, ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.UserID = testUser
			_, err := env.svc.UploadBatch(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, env.repo.auditActions())
}

func TestUploadBatch_XLSX(t *testing.T) {
	env := newTestEnv(t, Options{})

	var buf strings.Builder
	require.NoError(t, spreadsheet.Write(&buf, spreadsheet.XLSX,
		[]string{"Full Name", "Mobile", "Zip"},
		[][]string{{"Jane Tan", "81234567", "048616"}},
	))

	res, err := env.svc.UploadBatch(context.Background(), UploadRequest{
		UserID:   testUser,
		FileName: "book.xlsx",
		Data:     []byte(buf.String()),
		Region:   "singapore",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordCount)

	recs := env.records(t, res.BatchID)
	require.Len(t, recs, 1)
	assert.Equal(t, "Jane Tan", recs[0].Name)
	assert.Equal(t, "81234567", recs[0].Phone)
	assert.Equal(t, "048616", recs[0].PostalCode)
}

func TestUploadBatch_InsertFailureRemovesFile(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.repo.insertErr = assert.AnError

	_, err := env.svc.UploadBatch(context.Background(), UploadRequest{
		UserID:   testUser,
		FileName: "contacts.csv",
		Data:     []byte(sampleCSV),
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := os.ReadDir(filepath.Join(env.dir, "uploads", "7"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteBatch(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	assert.ErrorIs(t, env.svc.DeleteBatch(ctx, otherUser, res.BatchID), ErrBatchNotFound)

	require.NoError(t, env.repo.UpdateBatch(ctx, res.BatchID, store.BatchUpdate{Status: ptr(store.BatchProcessing)}))
	assert.ErrorIs(t, env.svc.DeleteBatch(ctx, testUser, res.BatchID), ErrBatchBusy)

	require.NoError(t, env.repo.UpdateBatch(ctx, res.BatchID, store.BatchUpdate{Status: ptr(store.BatchCompleted)}))
	require.NoError(t, env.svc.DeleteBatch(ctx, testUser, res.BatchID))

	b, err := env.svc.Batch(ctx, testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.BatchFailed, b.Status)
	assert.Equal(t, []string{"upload", "delete"}, env.repo.auditActions())
}

func TestBatchesAndDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	first := env.upload(t)
	second := env.upload(t)

	batches, err := env.svc.Batches(ctx, testUser, 10)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, second.BatchID, batches[0].ID)
	assert.Equal(t, first.BatchID, batches[1].ID)

	stats, err := env.svc.BatchStats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.Pending)

	dash, err := env.svc.DashboardStats(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, int64(6), dash.Records.Total)
	assert.Len(t, dash.RecentBatches, 2)

	none, err := env.svc.Batches(ctx, otherUser, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegions(t *testing.T) {
	env := newTestEnv(t, Options{})
	regions := env.svc.Regions()
	require.NotEmpty(t, regions)
	assert.Equal(t, cleaning.RegionSingapore, regions[0].Key)
	for _, r := range regions {
		assert.NotEmpty(t, r.Config.Name, r.Key)
	}
}

func TestProcessBatch(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	job := env.process(t, res.BatchID, false)
	assert.Equal(t, store.JobClean, job.Type)
	assert.Equal(t, store.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 3, job.ProcessedItems)
	assert.Equal(t, 3, job.TotalItems)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, 1, job.Result["errorCount"])
	assert.NotContains(t, job.Result, "enhancement")

	b, err := env.svc.Batch(ctx, testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.BatchCompleted, b.Status)
	assert.Equal(t, 1, b.ErrorRecords)
	assert.Equal(t, 3, b.CleanedRecords+b.ErrorRecords+b.WarningRecords)
	assert.NotNil(t, b.CompletedAt)

	recs := env.records(t, res.BatchID)
	require.Len(t, recs, 3)
	assert.Equal(t, cleaning.StatusCleaned, recs[0].Status)
	assert.Equal(t, "John Doe", recs[0].Cleaned.Name)
	assert.Equal(t, "+65 9123 4567", recs[0].Cleaned.Phone)
	assert.Equal(t, "john@example.com", recs[0].Cleaned.Email)
	assert.Equal(t, "John Doe", recs[0].CleanedData["name"])
	assert.Equal(t, cleaning.StatusFlagged, recs[1].Status)
	assert.True(t, recs[1].NeedsReview)

	issues, err := env.svc.Issues(ctx, testUser, res.BatchID, "")
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	for _, is := range issues {
		assert.NotZero(t, is.RecordID)
		assert.Equal(t, res.BatchID, is.BatchID)
	}
	errs, err := env.svc.Issues(ctx, testUser, res.BatchID, cleaning.SeverityError)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, cleaning.FieldName, errs[0].Field)
	assert.Equal(t, recs[1].ID, errs[0].RecordID)

	// Reprocessing replaces the findings instead of adding to them.
	again := env.process(t, res.BatchID, false)
	assert.Equal(t, store.JobCompleted, again.Status)
	reissued, err := env.svc.Issues(ctx, testUser, res.BatchID, "")
	require.NoError(t, err)
	assert.Len(t, reissued, len(issues))

	jobs, err := env.svc.BatchJobs(ctx, testUser, res.BatchID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	active, err := env.svc.ActiveJobs(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.Equal(t, []string{"upload", "clean", "clean"}, env.repo.auditActions())
}

func TestProcessBatch_Guards(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	_, err := env.svc.ProcessBatch(ctx, ProcessRequest{UserID: otherUser, BatchID: res.BatchID})
	assert.ErrorIs(t, err, ErrBatchNotFound)

	_, err = env.svc.ProcessBatch(ctx, ProcessRequest{UserID: testUser, BatchID: res.BatchID, UseLLM: true})
	assert.ErrorIs(t, err, ErrEnhancementDisabled)

	require.NoError(t, env.repo.UpdateBatch(ctx, res.BatchID, store.BatchUpdate{Status: ptr(store.BatchProcessing)}))
	_, err = env.svc.ProcessBatch(ctx, ProcessRequest{UserID: testUser, BatchID: res.BatchID})
	assert.ErrorIs(t, err, ErrBatchBusy)

	assert.Equal(t, 0, env.svc.Limiter().ActiveCount())
}

// staleBatchRepo reports every batch as pending, as a second request
// does when it reads before the first one's claim lands.
type staleBatchRepo struct {
	*memRepo
}

func (r staleBatchRepo) GetBatch(ctx context.Context, id int64) (store.Batch, error) {
	b, err := r.memRepo.GetBatch(ctx, id)
	b.Status = store.BatchPending
	return b, err
}

func TestProcessBatch_ClaimIsAtomic(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	files, err := storage.NewLocal(env.dir)
	require.NoError(t, err)
	svc := NewService(staleBatchRepo{env.repo}, files, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	require.NoError(t, env.repo.UpdateBatch(ctx, res.BatchID, store.BatchUpdate{Status: ptr(store.BatchProcessing)}))
	_, err = svc.ProcessBatch(ctx, ProcessRequest{UserID: testUser, BatchID: res.BatchID})
	assert.ErrorIs(t, err, ErrBatchBusy)

	jobs, err := env.repo.ListBatchJobs(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, 0, svc.Limiter().ActiveCount())
}

func TestProcessBatch_NoSlot(t *testing.T) {
	env := newTestEnv(t, Options{Processing: config.ProcessingConfig{MaxConcurrent: 1, MaxWaitTime: 20 * time.Millisecond}})
	res := env.upload(t)

	require.True(t, env.svc.Limiter().TryAcquire())
	defer env.svc.Limiter().Release()

	_, err := env.svc.ProcessBatch(context.Background(), ProcessRequest{UserID: testUser, BatchID: res.BatchID})
	assert.ErrorIs(t, err, ErrTooManyJobs)

	b, err := env.svc.Batch(context.Background(), testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.BatchPending, b.Status)
}

type stubSource struct {
	corrections []cleaning.Correction
	requests    []cleaning.EnhanceRequest
}

func (s *stubSource) Corrections(_ context.Context, req cleaning.EnhanceRequest) ([]cleaning.Correction, error) {
	s.requests = append(s.requests, req)
	return s.corrections, nil
}

func TestProcessBatch_WithEnhancer(t *testing.T) {
	name := "Jane Lim"
	src := &stubSource{corrections: []cleaning.Correction{
		{RowIndex: 1, Name: &name, Confidence: cleaning.ConfidenceHigh},
	}}
	env := newTestEnv(t, Options{Enhancer: &cleaning.Enhancer{Source: src}})
	require.True(t, env.svc.EnhancementEnabled())
	res := env.upload(t)

	job := env.process(t, res.BatchID, true)
	assert.Equal(t, store.JobLLMEnhance, job.Type)
	assert.Equal(t, store.JobCompleted, job.Status)

	stats, ok := job.Result["enhancement"].(map[string]any)
	require.True(t, ok, "result = %v", job.Result)
	assert.Equal(t, 1, stats["applied"])
	assert.Equal(t, 1, stats["boosted"])

	require.NotEmpty(t, src.requests)
	assert.Equal(t, "singapore", src.requests[0].Region)

	recs := env.records(t, res.BatchID)
	assert.Equal(t, "Jane Lim", recs[1].Cleaned.Name)
	assert.Equal(t, "Jane Lim", recs[1].CleanedData["name"])
	assert.Empty(t, recs[1].Name, "raw value must be kept")
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func TestProcessBatch_NotifiesLargeBatches(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, Options{
		Notifier:   notifier,
		Processing: config.ProcessingConfig{NotifyThreshold: 2},
	})
	res := env.upload(t)
	env.process(t, res.BatchID, false)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"Batch Processing Complete"}, notifier.titles)
}

func TestProcessBatch_SmallBatchNotNotified(t *testing.T) {
	notifier := &recordingNotifier{}
	env := newTestEnv(t, Options{
		Notifier:   notifier,
		Processing: config.ProcessingConfig{NotifyThreshold: 100},
	})
	res := env.upload(t)
	env.process(t, res.BatchID, false)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Empty(t, notifier.titles)
}

func TestJob_Ownership(t *testing.T) {
	env := newTestEnv(t, Options{})
	res := env.upload(t)
	job := env.process(t, res.BatchID, false)

	_, err := env.svc.Job(context.Background(), otherUser, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = env.svc.Job(context.Background(), testUser, 9999)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = env.svc.BatchJobs(context.Background(), otherUser, res.BatchID)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestRecoverInterrupted(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	res := env.upload(t)

	job, err := env.repo.CreateJob(ctx, store.NewJob{BatchID: res.BatchID, UserID: testUser, Type: store.JobClean, Status: store.JobProcessing})
	require.NoError(t, err)
	require.NoError(t, env.repo.UpdateBatch(ctx, res.BatchID, store.BatchUpdate{Status: ptr(store.BatchProcessing)}))

	require.NoError(t, env.svc.RecoverInterrupted(ctx))

	got, err := env.svc.Job(ctx, testUser, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobFailed, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)

	b, err := env.svc.Batch(ctx, testUser, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, store.BatchFailed, b.Status)
}

package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

// DefaultInsertBatchSize is the number of rows per COPY when the upload
// config leaves it unset.
const DefaultInsertBatchSize = 1000

// UploadRequest describes an uploaded spreadsheet.
type UploadRequest struct {
	UserID   int64
	FileName string
	Data     []byte
	Region   string
	// FileType overrides detection from FileName ("csv" or "xlsx").
	FileType string
}

// UploadResult is returned by UploadBatch.
type UploadResult struct {
	BatchID     int64  `json:"batchId"`
	RecordCount int    `json:"recordCount"`
	FileURL     string `json:"fileUrl"`
}

// UploadBatch stores the original file, parses it and creates a pending
// batch holding one record per data row.
func (s *Service) UploadBatch(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if len(req.Data) == 0 {
		return UploadResult{}, ErrNoFile
	}
	if limit := s.upload.MaxFileSize; limit > 0 && int64(len(req.Data)) > limit {
		return UploadResult{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(req.Data), limit)
	}

	region := req.Region
	if region == "" {
		region = s.upload.DefaultRegion
	}
	if !cleaning.IsSupported(region) {
		return UploadResult{}, fmt.Errorf("%w: %q", ErrUnsupportedRegion, region)
	}

	kind, err := resolveFileType(req.FileName, req.FileType)
	if err != nil {
		return UploadResult{}, err
	}

	tbl, err := spreadsheet.Parse(bytes.NewReader(req.Data), kind)
	switch {
	case errors.Is(err, spreadsheet.ErrEmptyFile), errors.Is(err, spreadsheet.ErrNoSheets):
		return UploadResult{}, fmt.Errorf("%w: %s", ErrEmptyFile, req.FileName)
	case err != nil:
		return UploadResult{}, fmt.Errorf("parse %s: %w", req.FileName, err)
	}

	key := storage.UploadKey(req.UserID, req.FileName)
	fileURL, err := s.files.Put(ctx, key, bytes.NewReader(req.Data), kind.ContentType())
	if err != nil {
		return UploadResult{}, fmt.Errorf("store original file: %w", err)
	}

	var batch store.Batch
	err = s.repo.Transact(ctx, func(tx Repository) error {
		var err error
		batch, err = tx.CreateBatch(ctx, store.NewBatch{
			UserID:          req.UserID,
			FileName:        req.FileName,
			OriginalFileURL: fileURL,
			FileSize:        int64(len(req.Data)),
			TotalRecords:    len(tbl.Rows),
			Region:          region,
		})
		if err != nil {
			return err
		}
		return s.insertRows(ctx, tx, batch.ID, tbl)
	})
	if err != nil {
		if delErr := s.files.Delete(context.WithoutCancel(ctx), key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			s.logger.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
		}
		return UploadResult{}, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("batch uploaded",
		"batch_id", batch.ID,
		"user_id", req.UserID,
		"file", req.FileName,
		"records", len(tbl.Rows),
		"region", region,
	)
	s.audit(ctx, AuditLogParams{
		UserID:     req.UserID,
		BatchID:    batch.ID,
		Action:     ActionUpload,
		EntityType: EntityBatch,
		EntityID:   batch.ID,
		NewValue: map[string]any{
			"fileName":    req.FileName,
			"recordCount": len(tbl.Rows),
			"region":      region,
		},
	})

	return UploadResult{BatchID: batch.ID, RecordCount: len(tbl.Rows), FileURL: fileURL}, nil
}

// insertRows maps each row to a raw record and copies them in chunks.
func (s *Service) insertRows(ctx context.Context, tx Repository, batchID int64, tbl *spreadsheet.Table) error {
	size := s.upload.BatchSize
	if size <= 0 {
		size = DefaultInsertBatchSize
	}

	chunk := make([]cleaning.RawRecord, 0, min(size, len(tbl.Rows)))
	for i, row := range tbl.Rows {
		chunk = append(chunk, cleaning.MapRawRowOrdered(tbl.Header, row, i, batchID))
		if len(chunk) == size || i == len(tbl.Rows)-1 {
			if _, err := tx.InsertRecords(ctx, chunk); err != nil {
				return fmt.Errorf("insert rows ending at %d: %w", i, err)
			}
			chunk = chunk[:0]
		}
	}
	return nil
}

func resolveFileType(fileName, override string) (spreadsheet.FileType, error) {
	var (
		kind spreadsheet.FileType
		err  error
	)
	if override != "" {
		kind, err = spreadsheet.ParseFileType(override)
	} else {
		kind, err = spreadsheet.DetectFileType(fileName)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileName)
	}
	return kind, nil
}

// DeleteBatch soft-deletes a batch by marking it failed.
func (s *Service) DeleteBatch(ctx context.Context, userID, batchID int64) error {
	b, err := s.ownedBatch(ctx, userID, batchID)
	if err != nil {
		return err
	}
	if b.Status == store.BatchProcessing {
		return ErrBatchBusy
	}

	if err := s.repo.UpdateBatch(ctx, batchID, store.BatchUpdate{Status: ptr(store.BatchFailed)}); err != nil {
		return fmt.Errorf("delete batch %d: %w", batchID, err)
	}

	s.audit(ctx, AuditLogParams{
		UserID:        userID,
		BatchID:       batchID,
		Action:        ActionDelete,
		EntityType:    EntityBatch,
		EntityID:      batchID,
		PreviousValue: map[string]any{"status": string(b.Status)},
		NewValue:      map[string]any{"status": string(store.BatchFailed)},
	})
	return nil
}

// Batch returns one of the caller's batches.
func (s *Service) Batch(ctx context.Context, userID, batchID int64) (store.Batch, error) {
	return s.ownedBatch(ctx, userID, batchID)
}

// Batches lists the caller's batches, newest first.
func (s *Service) Batches(ctx context.Context, userID int64, limit int) ([]store.Batch, error) {
	return s.repo.ListBatches(ctx, userID, limit)
}

// BatchStats counts the caller's batches by status.
func (s *Service) BatchStats(ctx context.Context, userID int64) (store.BatchStats, error) {
	return s.repo.BatchStats(ctx, userID)
}

// DashboardStats summarises the caller's activity.
func (s *Service) DashboardStats(ctx context.Context, userID int64) (store.DashboardStats, error) {
	return s.repo.DashboardStats(ctx, userID)
}

// timestamp returns the service clock as a pointer, for update structs.
func (s *Service) timestamp() *time.Time {
	t := s.now()
	return &t
}

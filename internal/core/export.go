package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/JonMunkholm/addrclean/internal/cleaning"
	"github.com/JonMunkholm/addrclean/internal/spreadsheet"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
)

var (
	exportColumns = []string{
		"name", "phone", "email", "address_line_1", "address_line_2",
		"city", "state", "postal_code", "country", "status", "quality_score",
	}
	originalColumns = []string{
		"original_name", "original_phone", "original_email", "original_address", "original_postal_code",
	}
)

// ExportTable renders records as export rows. Cleaned values come first,
// followed by the original values when includeOriginal is set.
func ExportTable(records []cleaning.CleanedRecord, includeOriginal bool) (header []string, rows [][]string) {
	header = append([]string(nil), exportColumns...)
	if includeOriginal {
		header = append(header, originalColumns...)
	}

	rows = make([][]string, len(records))
	for i, r := range records {
		c := r.Cleaned
		row := make([]string, 0, len(header))
		row = append(row,
			c.Name, c.Phone, c.Email, c.AddressLine1, c.AddressLine2,
			c.City, c.State, c.PostalCode, c.Country,
			string(r.Status), strconv.Itoa(r.QualityScore),
		)
		if includeOriginal {
			row = append(row, r.Name, r.Phone, r.Email, r.AddressLine1, r.PostalCode)
		}
		rows[i] = row
	}
	return header, rows
}

// ExportRequest asks for a batch export.
type ExportRequest struct {
	UserID          int64
	BatchID         int64
	Format          string
	IncludeOriginal bool
	// OnlyApproved keeps approved and cleaned records.
	OnlyApproved bool
}

// ExportResult locates a written export.
type ExportResult struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	RecordCount int    `json:"recordCount"`
}

// ExportBatch writes a batch's cleaned records to storage as CSV or XLSX
// and records the file on the batch.
func (s *Service) ExportBatch(ctx context.Context, req ExportRequest) (ExportResult, error) {
	format := req.Format
	if format == "" {
		format = string(spreadsheet.CSV)
	}
	kind, err := spreadsheet.ParseFileType(format)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, req.Format)
	}

	batch, err := s.ownedBatch(ctx, req.UserID, req.BatchID)
	if err != nil {
		return ExportResult{}, err
	}

	stored, err := s.repo.AllRecords(ctx, batch.ID)
	if err != nil {
		return ExportResult{}, err
	}
	records := make([]cleaning.CleanedRecord, 0, len(stored))
	for _, r := range stored {
		if req.OnlyApproved && r.Status != cleaning.StatusApproved && r.Status != cleaning.StatusCleaned {
			continue
		}
		records = append(records, r.CleanedRecord)
	}

	header, rows := ExportTable(records, req.IncludeOriginal)
	var buf bytes.Buffer
	if err := spreadsheet.Write(&buf, kind, header, rows); err != nil {
		return ExportResult{}, fmt.Errorf("render export: %w", err)
	}

	key := storage.ExportKey(req.UserID, batch.FileName, kind.Ext(), s.now())
	url, err := s.files.Put(ctx, key, &buf, kind.ContentType())
	if err != nil {
		return ExportResult{}, fmt.Errorf("store export: %w", err)
	}
	if err := s.repo.UpdateBatch(ctx, batch.ID, store.BatchUpdate{ProcessedFileURL: &url}); err != nil {
		return ExportResult{}, fmt.Errorf("record export: %w", err)
	}

	fileName := path.Base(key)
	s.audit(ctx, AuditLogParams{
		UserID:     req.UserID,
		BatchID:    batch.ID,
		Action:     ActionExport,
		EntityType: EntityBatch,
		EntityID:   batch.ID,
		NewValue: map[string]any{
			"format":      string(kind),
			"recordCount": len(records),
			"fileName":    fileName,
		},
	})

	return ExportResult{URL: url, FileName: fileName, RecordCount: len(records)}, nil
}

// OpenFile streams a stored upload or export. Keys are namespaced by user;
// files of other users are reported as not found.
func (s *Service) OpenFile(ctx context.Context, userID int64, key string) (io.ReadCloser, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || (parts[0] != "uploads" && parts[0] != "exports") ||
		parts[1] != strconv.FormatInt(userID, 10) {
		return nil, storage.ErrNotFound
	}
	return s.files.Get(ctx, key)
}

// Package spreadsheet reads uploaded CSV and XLSX files into header/row
// tables and writes cleaned exports back out.
package spreadsheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("no data found in file")
	ErrNoSheets            = errors.New("workbook has no sheets")
)

// FileType is a supported spreadsheet format.
type FileType string

const (
	CSV  FileType = "csv"
	XLSX FileType = "xlsx"
)

// DetectFileType picks the format from a file name's extension. Legacy
// .xls files are read by the XLSX reader, which rejects them if they are
// not actually OOXML.
func DetectFileType(fileName string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return CSV, nil
	case ".xlsx", ".xlsm", ".xls":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, fileName)
}

// ParseFileType validates a format name such as "csv" or "xlsx".
func ParseFileType(s string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(s))) {
	case CSV:
		return CSV, nil
	case XLSX, "excel":
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, s)
}

// Ext returns the file extension including the dot.
func (t FileType) Ext() string { return "." + string(t) }

// ContentType returns the MIME type used when storing files of this type.
func (t FileType) ContentType() string {
	if t == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Table is a parsed sheet. Every row has exactly len(Header) cells; blank
// rows are dropped.
type Table struct {
	Header []string
	Rows   [][]string
}

// Row returns row i keyed by header. Duplicate headers keep the last value.
func (t *Table) Row(i int) map[string]string {
	m := make(map[string]string, len(t.Header))
	for j, h := range t.Header {
		m[h] = t.Rows[i][j]
	}
	return m
}

// Parse reads a CSV or XLSX file. The first row is the header.
func Parse(r io.Reader, kind FileType) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch kind {
	case CSV:
		rows, err = readCSV(r)
	case XLSX:
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, kind)
	}
	if err != nil {
		return nil, err
	}
	return buildTable(rows)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(NewBOMSkippingReader(r))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	// Files saved by older Excel builds are Windows-1252, not UTF-8.
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func buildTable(rows [][]string) (*Table, error) {
	// Skip leading blank lines before the header.
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	// Trailing unnamed columns carry no data we can map.
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, ErrEmptyFile
	}

	t := &Table{Header: header}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		cells := make([]string, len(header))
		copy(cells, row)
		t.Rows = append(t.Rows, cells)
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	return t, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

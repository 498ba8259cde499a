package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// OpenSource opens an export, picking the reader by file extension
func OpenSource(path string) (RowSource, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return OpenXLSX(path, "")
	}
	return OpenCSV(path)
}

// NewSource reads an export from r; name only selects the format
func NewSource(r io.Reader, name string) (RowSource, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		src, err := NewXLSXSource(f, "")
		if err != nil {
			f.Close()
			return nil, err
		}
		return src, nil
	}
	return NewCSVSource(r)
}

/* ──────────── CSV ──────────── */

// CSVSource streams rows from a CSV export with a header row
type CSVSource struct {
	r      *csv.Reader
	closer io.Closer
	header []string
}

// OpenCSV opens a CSV export from disk
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	src, err := NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewCSVSource reads the header from r and returns a source over the rest
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyExport
		}
		if err != nil {
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		if !blank(rec) {
			header = rec
			break
		}
	}

	canon, err := canonicalHeader(header)
	if err != nil {
		return nil, err
	}
	return &CSVSource{r: cr, header: canon}, nil
}

// Next implements RowSource
func (s *CSVSource) Next() (Row, error) {
	for {
		rec, err := s.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		return buildRow(s.header, rec), nil
	}
}

// Close implements RowSource
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

/* ──────────── XLSX ──────────── */

// XLSXSource streams rows from one sheet of an Excel export
type XLSXSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
}

// OpenXLSX opens an Excel export. An empty sheet name selects the first sheet.
func OpenXLSX(path, sheet string) (*XLSXSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	src, err := NewXLSXSource(f, sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewXLSXSource reads the header of sheet in f
func NewXLSXSource(f *excelize.File, sheet string) (*XLSXSource, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyExport
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var header []string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("read xlsx header: %w", err)
		}
		if !blank(cols) {
			header = cols
			break
		}
	}
	if header == nil {
		rows.Close()
		return nil, ErrEmptyExport
	}

	canon, err := canonicalHeader(header)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &XLSXSource{file: f, rows: rows, header: canon}, nil
}

// Next implements RowSource
func (s *XLSXSource) Next() (Row, error) {
	for s.rows.Next() {
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read xlsx: %w", err)
		}
		if blank(cols) {
			continue
		}
		return buildRow(s.header, cols), nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	return nil, io.EOF
}

// Close implements RowSource
func (s *XLSXSource) Close() error {
	if err := s.rows.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

package ingestion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Row is one raw CDR row keyed by canonical column name
type Row map[string]string

// RowSource yields raw rows from an export (CSV, XLSX, ...)
type RowSource interface {
	// Next returns the next data row, or io.EOF when the export is exhausted
	Next() (Row, error)

	// Close releases the underlying file
	Close() error
}

// Canonical column names
const (
	ColPhoneNumber   = "Phone Number"
	ColCallDirection = "Call Direction"
	ColSpecialType   = "Special Call Type"
	ColCalledNumber  = "Called Number"
	ColCallingNumber = "Calling Number"
	ColCallerName    = "Caller Name"
	ColCallCategory  = "Call Category"
	ColCallDate      = "Call Date"
	ColCallTime      = "Call Time"
)

var knownColumns = []string{
	ColPhoneNumber, ColCallDirection, ColSpecialType, ColCalledNumber,
	ColCallingNumber, ColCallerName, ColCallCategory, ColCallDate, ColCallTime,
}

// requiredColumns must be present in the header; the rest may be missing
var requiredColumns = []string{ColPhoneNumber, ColCallDirection, ColCallDate, ColCallTime}

var (
	ErrUnknownDirection = errors.New("unknown call direction")
	ErrMissingColumn    = errors.New("missing required column")
	ErrEmptyExport      = errors.New("export has no header row")
)

// RowError ties a fatal row condition to its 1-based data row number
type RowError struct {
	Row   int
	Value string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v: %q", e.Row, e.Err, e.Value)
}

func (e *RowError) Unwrap() error { return e.Err }

/* ──────────── header normalisation ──────────── */

var spaceRE = regexp.MustCompile(`\s+`)

func norm(s string) string {
	return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

var canonical = func() map[string]string {
	m := make(map[string]string, len(knownColumns))
	for _, c := range knownColumns {
		m[norm(c)] = c
	}
	return m
}()

// canonicalHeader maps export header cells onto canonical names. Unknown
// columns keep their trimmed original name.
func canonicalHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if c, ok := canonical[norm(h)]; ok {
			out[i] = c
		} else {
			out[i] = strings.TrimSpace(h)
		}
		seen[out[i]] = true
	}

	for _, c := range requiredColumns {
		if !seen[c] {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	return out, nil
}

// buildRow zips a header with a record. Short records leave columns empty.
func buildRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(record) {
			row[name] = strings.TrimSpace(record[i])
		} else {
			row[name] = ""
		}
	}
	return row
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

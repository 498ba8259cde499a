package ingestion

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/xuri/excelize/v2"
)

var est = time.FixedZone("EST", -5*60*60)

const header = "Phone Number,Call Direction,Special Call Type,Called Number,Calling Number,Caller Name,Call Category,Call Date,Call Time\n"

func TestNormalize(t *testing.T) {
	row := Row{
		ColPhoneNumber:   "6175550100",
		ColCallDirection: "Originating",
		ColSpecialType:   "Call Forward No Answer",
		ColCalledNumber:  "500",
		ColCallDate:      "2020-02-01",
		ColCallTime:      "00:00:00",
	}

	ev, err := Normalize(row, 4, est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Direction != types.DirectionOutgoing {
		t.Errorf("expected outgoing, got %s", ev.Direction)
	}
	if ev.SpecialType != types.SpecialTypeForwardNoAnswer {
		t.Errorf("expected forward no answer, got %s", ev.SpecialType)
	}
	if !ev.Timestamp.Equal(time.Date(2020, 2, 1, 5, 0, 0, 0, time.UTC)) {
		t.Errorf("expected midnight EST, got %v", ev.Timestamp)
	}
	if ev.Row != 4 {
		t.Errorf("expected row 4, got %d", ev.Row)
	}
	if ev.Raw[ColCalledNumber] != "500" {
		t.Errorf("expected raw record to be kept, got %v", ev.Raw)
	}
}

func TestNormalizeUnknownSpecialTypeKeepsRaw(t *testing.T) {
	row := Row{
		ColPhoneNumber:   "100",
		ColCallDirection: "Originating",
		ColSpecialType:   "Sequential Ring",
		ColCallDate:      "2020-02-01",
		ColCallTime:      "10:00",
	}
	ev, err := Normalize(row, 1, est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.SpecialType != types.SpecialTypeUnrecognized {
		t.Errorf("expected unrecognized, got %s", ev.SpecialType)
	}
	if ev.RawSpecialType != "Sequential Ring" {
		t.Errorf("expected raw special type kept, got %q", ev.RawSpecialType)
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want error
	}{
		{
			name: "unknown direction",
			row:  Row{ColCallDirection: "Unknown", ColCallDate: "2020-02-01", ColCallTime: "10:00:00"},
			want: ErrUnknownDirection,
		},
		{
			name: "empty direction",
			row:  Row{ColCallDirection: "", ColCallDate: "2020-02-01", ColCallTime: "10:00:00"},
			want: ErrUnknownDirection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.row, 9, est)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) || rowErr.Row != 9 {
				t.Errorf("expected RowError for row 9, got %v", err)
			}
		})
	}
}

func TestNormalizeWithoutTimestamp(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"bad date", Row{ColCallDirection: "Terminating", ColCallDate: "yesterday", ColCallTime: "10:00:00"}},
		{"bad time", Row{ColCallDirection: "Terminating", ColCallDate: "2020-02-01", ColCallTime: "noon"}},
		{"missing date", Row{ColCallDirection: "Originating", ColSpecialType: "Call Forward No Answer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize(tt.row, 2, est)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.HasTime() {
				t.Errorf("expected no usable time, got %v", ev.Timestamp)
			}
			if ev.Row != 2 {
				t.Errorf("expected row 2, got %d", ev.Row)
			}
		})
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2020, 2, 10, 14, 5, 0, 0, est)

	tests := []struct {
		date  string
		clock string
	}{
		{"2020-02-10", "14:05:00"},
		{"2020-02-10", "14:05"},
		{"2/10/2020", "2:05 PM"},
		{"02/10/2020", "2:05:00 PM"},
		{"2/10/20", "14:05:00"},
	}

	for _, tt := range tests {
		t.Run(tt.date+" "+tt.clock, func(t *testing.T) {
			got, ok := parseTimestamp(tt.date, tt.clock, est)
			if !ok {
				t.Fatal("expected timestamp to parse")
			}
			if !got.Equal(want) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}

	if got, ok := parseTimestamp("2020-02-10", "", est); !ok || !got.Equal(time.Date(2020, 2, 10, 0, 0, 0, 0, est)) {
		t.Errorf("expected date-only value to parse as midnight, got %v %v", got, ok)
	}
}

func TestCSVSource(t *testing.T) {
	data := "\ufeffphone number , CALL  DIRECTION,Special Call Type,Called Number,Calling Number,Caller Name,Call Category,Call Date,Call Time,Extra\n" +
		"100,Terminating,,,,,,2020-02-01,09:00:00,x\n" +
		"\n" +
		"100,Originating,Call Forward Always,200\n"

	src, err := NewCSVSource(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()

	first, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[ColPhoneNumber] != "100" || first[ColCallDirection] != "Terminating" {
		t.Errorf("header not canonicalised: %v", first)
	}
	if first["Extra"] != "x" {
		t.Errorf("expected unknown column kept, got %v", first)
	}

	second, err := src.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second[ColSpecialType] != "Call Forward Always" || second[ColCallDate] != "" {
		t.Errorf("unexpected short row: %v", second)
	}

	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader("Phone Number,Call Date,Call Time\n100,2020-02-01,10:00\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected missing column error, got %v", err)
	}
}

func TestCSVSourceEmpty(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""))
	if !errors.Is(err, ErrEmptyExport) {
		t.Errorf("expected empty export error, got %v", err)
	}
}

func TestXLSXSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")

	f := excelize.NewFile()
	rows := [][]string{
		strings.Split(strings.TrimSpace(header), ","),
		{"100", "Terminating", "", "", "", "", "", "2020-02-01", "09:00:00"},
		{"100", "Originating", "BroadWorks Anywhere Location", "", "", "", "", "2020-02-01", "09:01:00"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			f.SetCellStr("Sheet1", cell, v)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	f.Close()

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer src.Close()

	var got []Row
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, row)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[1][ColSpecialType] != "BroadWorks Anywhere Location" {
		t.Errorf("unexpected second row: %v", got[1])
	}
}

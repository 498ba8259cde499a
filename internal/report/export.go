package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Sheet names of the workbook written by WriteXLSX
const (
	SheetNumbers   = "numbers"
	SheetDaily     = "daily"
	SheetAnomalies = "anomalies"
)

var numberColumns = []interface{}{
	"Phone Number", "Total",
	"Sent to voicemail", "Sent to AA", "Forwarded", "Attempted to ring to cell", "Calls to portal from handset",
	"Incoming past week", "Incoming month", "Incoming last 60 days",
	"Outgoing past week", "Outgoing month", "Outgoing last 60 days",
}

// WriteXLSX writes the report as a workbook with one sheet per table
func WriteXLSX(w io.Writer, r *Report) error {
	x := excelize.NewFile()
	defer x.Close()

	var werr error
	add := func(name string, rows [][]interface{}) {
		if werr != nil {
			return
		}
		idx, err := x.NewSheet(name)
		if err != nil {
			werr = fmt.Errorf("create sheet %s: %w", name, err)
			return
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := x.SetSheetRow(name, cell, &row); err != nil {
				werr = fmt.Errorf("write sheet %s row %d: %w", name, i+1, err)
				return
			}
		}
		if name == SheetNumbers {
			x.SetActiveSheet(idx)
		}
	}

	numbers := [][]interface{}{numberColumns}
	for _, n := range r.Numbers {
		s := n.Stats
		numbers = append(numbers, []interface{}{
			n.Number, s.Total,
			s.SentToVoicemail, s.SentToAttendant, s.Forwarded, s.AttemptedCellRing, s.VoicePortalAccess,
			s.IncomingWeek, s.IncomingMonth, s.Incoming60,
			s.OutgoingWeek, s.OutgoingMonth, s.Outgoing60,
		})
	}

	daily := [][]interface{}{{"Date", "Calls"}}
	for _, d := range r.Daily {
		daily = append(daily, []interface{}{d.Date, d.Count})
	}

	anomalies := [][]interface{}{{"Row", "Kind", "Phone Number", "Timestamp", "Message"}}
	for _, a := range r.Anomalies {
		var ts string
		if a.Event.HasTime() {
			ts = a.Event.Timestamp.Format(time.RFC3339)
		}
		anomalies = append(anomalies, []interface{}{
			a.Row, string(a.Kind), a.Number, ts, a.Message,
		})
	}

	add(SheetNumbers, numbers)
	add(SheetDaily, daily)
	add(SheetAnomalies, anomalies)
	if werr != nil {
		return werr
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	return x.Write(w)
}

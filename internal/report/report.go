// Package report turns a finished aggregate into the usage report and renders
// it as coloured text, JSON or an XLSX workbook.
package report

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/aggregator"
	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/samber/lo"
)

// NumberReport is the counter set of one internal number
type NumberReport struct {
	Number string               `json:"number"`
	Stats  types.PerNumberStats `json:"stats"`
}

// Redirects returns only the redirect buckets that were hit
func (n NumberReport) Redirects() []types.RedirectCount {
	return lo.Filter(n.Stats.Redirects(), func(rc types.RedirectCount, _ int) bool {
		return rc.Count > 0
	})
}

// Report is the complete output of one run
type Report struct {
	RunID       string    `json:"runId"`
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generatedAt"`
	AsOf        time.Time `json:"asOf"`
	Month       string    `json:"month"`      // YYYY-MM
	MonthLabel  string    `json:"monthLabel"` // e.g. February
	Offset      string    `json:"offset"`     // e.g. -05:00
	Rows        int       `json:"rows"`

	Earliest *time.Time `json:"earliest,omitempty"`
	Latest   *time.Time `json:"latest,omitempty"`

	Numbers       []NumberReport     `json:"numbers"`
	Daily         []types.DayCount   `json:"daily"`
	Anomalies     []alerts.Anomaly   `json:"anomalies"`
	AnomalyCounts []alerts.KindCount `json:"anomalyCounts"`
}

// Meta carries the run parameters that are not part of the aggregate
type Meta struct {
	RunID       string
	Source      string
	GeneratedAt time.Time
	Rows        int
	Windows     aggregator.Windows
}

// Build assembles a report from a finalized aggregate
func Build(state *aggregator.GlobalState, anomalies []alerts.Anomaly, meta Meta) *Report {
	w := meta.Windows
	r := &Report{
		RunID:         meta.RunID,
		Source:        meta.Source,
		GeneratedAt:   meta.GeneratedAt,
		AsOf:          w.Now,
		Month:         w.MonthStart.Format("2006-01"),
		MonthLabel:    w.MonthLabel(),
		Offset:        w.MonthStart.Format("-07:00"),
		Rows:          meta.Rows,
		Daily:         state.Daily.Sorted(),
		Anomalies:     anomalies,
		AnomalyCounts: alerts.CountByKind(anomalies),
	}
	if r.Anomalies == nil {
		r.Anomalies = []alerts.Anomaly{}
	}

	if state.HasRange() {
		earliest, latest := state.Earliest, state.Latest
		r.Earliest, r.Latest = &earliest, &latest
	}

	numbers := lo.Keys(state.Numbers)
	sort.Strings(numbers)
	r.Numbers = lo.Map(numbers, func(n string, _ int) NumberReport {
		return NumberReport{Number: n, Stats: *state.Numbers[n]}
	})

	return r
}

// Number looks up one internal number
func (r *Report) Number(number string) (NumberReport, bool) {
	return lo.Find(r.Numbers, func(n NumberReport) bool { return n.Number == number })
}

// Records flattens the report into its persistent form
func (r *Report) Records() (types.RunRecord, []types.NumberStatsRecord, []types.DailyCountRecord) {
	run := types.RunRecord{
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt.Format(time.RFC3339),
		Source:      r.Source,
		AsOf:        r.AsOf.Format(time.RFC3339),
		Month:       r.Month,
		Rows:        r.Rows,
		Anomalies:   len(r.Anomalies),
	}
	if r.Earliest != nil {
		run.Earliest = r.Earliest.Format(time.RFC3339)
		run.Latest = r.Latest.Format(time.RFC3339)
	}

	numbers := lo.Map(r.Numbers, func(n NumberReport, _ int) types.NumberStatsRecord {
		return types.NewNumberStatsRecord(r.RunID, n.Number, n.Stats)
	})
	daily := lo.Map(r.Daily, func(d types.DayCount, _ int) types.DailyCountRecord {
		return types.DailyCountRecord{RunID: r.RunID, DateKey: d.Date, Count: d.Count}
	})
	return run, numbers, daily
}

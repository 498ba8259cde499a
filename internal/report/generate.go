package report

import (
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/aggregator"
	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/classifier"
	"github.com/dennisdiepolder/cdrstats/internal/ingestion"
	"github.com/dennisdiepolder/cdrstats/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Params configures one run
type Params struct {
	Source        string         // file name shown in the report
	Location      *time.Location // fixed offset the export is read in
	Now           time.Time      // run time the relative windows hang off; zero means wall clock
	Month         time.Time      // any instant in the fixed month
	WeekDays      int
	RetentionDays int
	GraceDays     int
	Rules         classifier.Rules
}

// Generate runs the whole pipeline over src. A fatal row aborts the run and
// no report is produced.
func Generate(src ingestion.RowSource, p Params, logger zerolog.Logger) (*Report, error) {
	start := time.Now()
	m := metrics.Get()

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	now := p.Now
	if now.IsZero() {
		now = start
	}
	month := p.Month
	if month.IsZero() {
		month = time.Date(2020, time.February, 1, 0, 0, 0, 0, loc)
	}

	windows := aggregator.NewWindows(aggregator.WindowConfig{
		Now:           now.In(loc),
		Month:         month.In(loc),
		WeekDays:      p.WeekDays,
		RetentionDays: p.RetentionDays,
		GraceDays:     p.GraceDays,
	})

	reporter := alerts.NewReporter(logger)
	agg := aggregator.NewAggregator(windows, reporter)
	proc := ingestion.NewProcessor(classifier.New(p.Rules), agg, reporter, loc, logger)

	if err := proc.Run(src); err != nil {
		m.RecordRunError()
		return nil, err
	}

	r := Build(agg.State(), reporter.Anomalies(), Meta{
		RunID:       uuid.NewString(),
		Source:      p.Source,
		GeneratedAt: time.Now().In(loc),
		Rows:        proc.Rows(),
		Windows:     windows,
	})

	duration := time.Since(start)
	m.RecordRun(duration, proc.Rows())

	logger.Info().
		Str("run_id", r.RunID).
		Str("source", r.Source).
		Int("rows", r.Rows).
		Int("numbers", len(r.Numbers)).
		Int("anomalies", len(r.Anomalies)).
		Dur("duration", duration).
		Msg("Report generated")

	return r, nil
}

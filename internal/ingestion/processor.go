package ingestion

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/aggregator"
	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/classifier"
	"github.com/dennisdiepolder/cdrstats/internal/metrics"
	"github.com/rs/zerolog"
)

// Processor folds rows through normalize, classify and aggregate, in order
type Processor struct {
	classifier classifier.Classifier
	aggregator *aggregator.Aggregator
	reporter   *alerts.Reporter
	loc        *time.Location
	logger     zerolog.Logger
	rows       int
}

// NewProcessor creates a new Processor. reporter may be nil.
func NewProcessor(
	c classifier.Classifier,
	agg *aggregator.Aggregator,
	reporter *alerts.Reporter,
	loc *time.Location,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		classifier: c,
		aggregator: agg,
		reporter:   reporter,
		loc:        loc,
		logger:     logger.With().Str("component", "processor").Logger(),
	}
}

// ProcessRow handles one raw row. The only error is a fatal row condition.
func (p *Processor) ProcessRow(row Row) error {
	m := metrics.Get()
	p.rows++
	m.RecordRow()

	ev, err := Normalize(row, p.rows, p.loc)
	if err != nil {
		m.RecordFatalRow()
		return err
	}

	res := p.classifier.Classify(ev, ev.InternalNumber)
	if res.Anomaly != "" && p.reporter != nil {
		p.reporter.Report(res.Anomaly, ev)
	}
	p.aggregator.Apply(ev, res.Category, res.Skip)
	m.RecordCategory(string(res.Category))

	p.logger.Trace().
		Int("row", ev.Row).
		Str("phone_number", ev.InternalNumber).
		Str("category", string(res.Category)).
		Bool("skip", res.Skip).
		Msg("row classified")

	return nil
}

// Run drains src and finalizes the aggregate. It stops at the first fatal row;
// the aggregate must then be discarded.
func (p *Processor) Run(src RowSource) error {
	for {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", p.rows+1, err)
		}

		if err := p.ProcessRow(row); err != nil {
			p.logger.Error().Err(err).Int("row", p.rows).Msg("aborting batch")
			return err
		}
	}

	p.aggregator.Finalize()

	var anomalies int
	if p.reporter != nil {
		anomalies = p.reporter.Count()
	}
	p.logger.Debug().
		Int("rows", p.rows).
		Int("numbers", len(p.aggregator.State().Numbers)).
		Int("anomalies", anomalies).
		Msg("export processed")
	return nil
}

// Rows returns the number of data rows read so far
func (p *Processor) Rows() int {
	return p.rows
}

package alerts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dennisdiepolder/cdrstats/internal/metrics"
	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/rs/zerolog"
)

// Kind identifies a non-fatal anomaly
type Kind string

const (
	KindUnhandledRedirect     Kind = "unhandled_redirect"      // selective forward not to the attendant
	KindUnknownSpecialType    Kind = "unknown_special_type"    // special call type outside the known set
	KindUnrecognizedEmptyType Kind = "unrecognized_empty_type" // empty special type matching no known shape
	KindStaleRecord           Kind = "stale_record"            // older than the retention window plus grace
	KindBadTimestamp          Kind = "bad_timestamp"           // plain call with no usable date/time
)

// Anomaly is one warned row. The full event is kept for operator review.
type Anomaly struct {
	Kind    Kind            `json:"kind"`
	Message string          `json:"message"`
	Row     int             `json:"row"`
	Number  string          `json:"number"`
	Event   types.CallEvent `json:"event"`
}

// Reporter collects anomalies in row order and logs each one as it arrives.
// It never fails; the only fatal condition is handled by the caller.
type Reporter struct {
	anomalies []Anomaly
	logger    zerolog.Logger
}

// NewReporter creates a new reporter
func NewReporter(logger zerolog.Logger) *Reporter {
	return &Reporter{
		logger: logger.With().Str("component", "anomalies").Logger(),
	}
}

// Report records an anomaly of the given kind for ev
func (r *Reporter) Report(kind Kind, ev types.CallEvent) {
	a := Anomaly{
		Kind:    kind,
		Message: describe(kind, ev),
		Row:     ev.Row,
		Number:  ev.InternalNumber,
		Event:   ev,
	}
	r.anomalies = append(r.anomalies, a)
	metrics.Get().RecordAnomaly(string(kind))

	r.logger.Warn().
		Str("kind", string(kind)).
		Int("row", ev.Row).
		Str("phone_number", ev.InternalNumber).
		Interface("record", ev.Raw).
		Msg(a.Message)
}

// Anomalies returns a copy of everything reported so far
func (r *Reporter) Anomalies() []Anomaly {
	out := make([]Anomaly, len(r.anomalies))
	copy(out, r.anomalies)
	return out
}

// Count returns the number of anomalies reported
func (r *Reporter) Count() int {
	return len(r.anomalies)
}

// KindCount is a per-kind total
type KindCount struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// CountByKind tallies anomalies per kind, sorted by kind name
func CountByKind(anomalies []Anomaly) []KindCount {
	counts := make(map[Kind]int)
	for _, a := range anomalies {
		counts[a.Kind]++
	}

	out := make([]KindCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func describe(kind Kind, ev types.CallEvent) string {
	switch kind {
	case KindUnhandledRedirect:
		return fmt.Sprintf("unhandled %q call to %q", ev.RawSpecialType, ev.CalledNumber)
	case KindUnknownSpecialType:
		return fmt.Sprintf("unknown call type %q", ev.RawSpecialType)
	case KindUnrecognizedEmptyType:
		return fmt.Sprintf("unhandled empty call type from caller %q", ev.CallerName)
	case KindStaleRecord:
		return fmt.Sprintf("unexpected call log from %s, older than the expected window",
			ev.Timestamp.Format("2006-01-02 15:04:05 -07:00"))
	case KindBadTimestamp:
		return fmt.Sprintf("unusable call date/time %q, counted in total only",
			strings.TrimSpace(ev.Raw["Call Date"]+" "+ev.Raw["Call Time"]))
	}
	return string(kind)
}

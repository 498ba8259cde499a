package aggregator

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/types"
)

// Histogram maps a civil date (YYYY-MM-DD) to a call count
type Histogram map[string]int

// Sorted returns the buckets ordered by date
func (h Histogram) Sorted() []types.DayCount {
	out := make([]types.DayCount, 0, len(h))
	for date, count := range h {
		out = append(out, types.DayCount{Date: date, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// GlobalState is the whole aggregate. It is owned by one Aggregator.
type GlobalState struct {
	Earliest time.Time // zero until the first plain call
	Latest   time.Time
	Daily    Histogram
	Numbers  map[string]*types.PerNumberStats
}

// HasRange reports whether any plain call was seen
func (s *GlobalState) HasRange() bool {
	return !s.Earliest.IsZero()
}

// Aggregator folds classified events into a GlobalState
type Aggregator struct {
	state    GlobalState
	windows  Windows
	reporter *alerts.Reporter
}

// NewAggregator creates a new aggregator
func NewAggregator(windows Windows, reporter *alerts.Reporter) *Aggregator {
	return &Aggregator{
		state: GlobalState{
			Daily:   make(Histogram),
			Numbers: make(map[string]*types.PerNumberStats),
		},
		windows:  windows,
		reporter: reporter,
	}
}

// Windows returns the window bounds in use
func (a *Aggregator) Windows() Windows {
	return a.windows
}

// Apply folds one classified event into the state
func (a *Aggregator) Apply(ev types.CallEvent, category types.EventCategory, skip bool) {
	stats := a.statsFor(ev.InternalNumber)
	stats.Total++

	if skip || !category.IsPlain() {
		// UnhandledRedirect and UnknownSpecialType only count towards total
		switch category {
		case types.CategorySentToVoicemail:
			stats.SentToVoicemail++
		case types.CategorySentToAttendant:
			stats.SentToAttendant++
		case types.CategoryForwarded:
			stats.Forwarded++
		case types.CategoryAttemptedCellRing:
			stats.AttemptedCellRing++
		case types.CategoryVoicePortalAccess:
			stats.VoicePortalAccess++
		}
		return
	}

	if !ev.HasTime() {
		if a.reporter != nil {
			a.reporter.Report(alerts.KindBadTimestamp, ev)
		}
		return
	}

	a.trackExtremes(ev.Timestamp)
	a.state.Daily[ev.DateKey()]++

	incoming := category == types.CategoryPlainIncoming

	if a.windows.InWeek(ev.Timestamp) {
		if incoming {
			stats.IncomingWeek++
		} else {
			stats.OutgoingWeek++
		}
	}

	if a.windows.InRetention(ev.Timestamp) {
		if incoming {
			stats.Incoming60++
		} else {
			stats.Outgoing60++
		}
	} else if a.windows.IsStale(ev.Timestamp) && a.reporter != nil {
		// The PBX only keeps about two months; a grace day covers its batch job
		a.reporter.Report(alerts.KindStaleRecord, ev)
	}

	if a.windows.InMonth(ev.Timestamp) {
		if incoming {
			stats.IncomingMonth++
		} else {
			stats.OutgoingMonth++
		}
	}
}

// Finalize zero-fills every date between the earliest and latest call
func (a *Aggregator) Finalize() {
	if !a.state.HasRange() {
		return
	}
	FillGaps(a.state.Daily, a.state.Earliest, a.state.Latest)
}

// State returns the aggregate. Callers must not mutate it.
func (a *Aggregator) State() *GlobalState {
	return &a.state
}

// FillGaps inserts a zero bucket for each date in [from, to] missing from h.
// Dates are taken in from's location.
func FillGaps(h Histogram, from, to time.Time) {
	loc := from.Location()
	to = to.In(loc)
	cur := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	for !cur.After(last) {
		key := cur.Format(types.DateLayout)
		if _, ok := h[key]; !ok {
			h[key] = 0
		}
		cur = cur.AddDate(0, 0, 1)
	}
}

func (a *Aggregator) statsFor(number string) *types.PerNumberStats {
	stats, ok := a.state.Numbers[number]
	if !ok {
		stats = &types.PerNumberStats{}
		a.state.Numbers[number] = stats
	}
	return stats
}

func (a *Aggregator) trackExtremes(t time.Time) {
	if a.state.Earliest.IsZero() || t.Before(a.state.Earliest) {
		a.state.Earliest = t
	}
	if a.state.Latest.IsZero() || t.After(a.state.Latest) {
		a.state.Latest = t
	}
}

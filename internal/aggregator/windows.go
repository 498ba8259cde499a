package aggregator

import "time"

const day = 24 * time.Hour

// Windows holds the precomputed bounds every event is tested against
type Windows struct {
	Now            time.Time
	WeekStart      time.Time // exclusive: in the week when timestamp > WeekStart
	RetentionStart time.Time // inclusive
	StaleBefore    time.Time // older than this is warned about
	MonthStart     time.Time // inclusive
	MonthEnd       time.Time // exclusive
}

// WindowConfig parameterizes the windows
type WindowConfig struct {
	Now           time.Time
	Month         time.Time // any instant in the target month, in the report offset
	WeekDays      int
	RetentionDays int
	GraceDays     int
}

// NewWindows computes the window bounds. The month window is a literal
// calendar month in Month's location; the others are relative to Now.
func NewWindows(cfg WindowConfig) Windows {
	if cfg.WeekDays <= 0 {
		cfg.WeekDays = 7
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 60
	}
	if cfg.GraceDays < 0 {
		cfg.GraceDays = 0
	}

	monthStart := time.Date(cfg.Month.Year(), cfg.Month.Month(), 1, 0, 0, 0, 0, cfg.Month.Location())
	retentionStart := cfg.Now.Add(-time.Duration(cfg.RetentionDays) * day)

	return Windows{
		Now:            cfg.Now,
		WeekStart:      cfg.Now.Add(-time.Duration(cfg.WeekDays) * day),
		RetentionStart: retentionStart,
		StaleBefore:    retentionStart.Add(-time.Duration(cfg.GraceDays) * day),
		MonthStart:     monthStart,
		MonthEnd:       monthStart.AddDate(0, 1, 0),
	}
}

// InWeek reports past-week membership (strict)
func (w Windows) InWeek(t time.Time) bool {
	return t.After(w.WeekStart)
}

// InRetention reports trailing-window membership (inclusive)
func (w Windows) InRetention(t time.Time) bool {
	return !t.Before(w.RetentionStart)
}

// IsStale reports whether t is older than the export should contain
func (w Windows) IsStale(t time.Time) bool {
	return t.Before(w.StaleBefore)
}

// InMonth reports fixed-month membership, [MonthStart, MonthEnd)
func (w Windows) InMonth(t time.Time) bool {
	return !t.Before(w.MonthStart) && t.Before(w.MonthEnd)
}

// MonthLabel is the display name of the fixed month, e.g. "February"
func (w Windows) MonthLabel() string {
	return w.MonthStart.Month().String()
}

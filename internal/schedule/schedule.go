// Package schedule reruns a job on a 5-field cron expression.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler runs a job at the times a cron expression names
type Scheduler struct {
	expr     string
	schedule cron.Schedule
	loc      *time.Location
	job      Job
	logger   zerolog.Logger
}

// Parse validates a standard 5-field cron expression
// (minute hour day-of-month month day-of-week)
func Parse(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return s, nil
}

// New creates a scheduler. Times in expr are read in loc.
func New(expr string, loc *time.Location, job Job, logger zerolog.Logger) (*Scheduler, error) {
	s, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		expr:     expr,
		schedule: s,
		loc:      loc,
		job:      job,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Run blocks until ctx is done, running the job at every activation. A
// failing job is logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().Str("schedule", s.expr).Msg("scheduler started")

	for {
		now := time.Now()
		next := s.Next(now)
		s.logger.Debug().
			Time("next", next).
			Dur("wait", next.Sub(now).Round(time.Second)).
			Msg("next scheduled run")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("scheduler stopped")
			return
		case <-timer.C:
		}

		if err := s.job(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled run failed")
		}
	}
}

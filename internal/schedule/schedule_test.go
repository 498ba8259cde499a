package schedule

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParse(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 6 * * *", false},
		{"*/15 * * * 1-5", false},
		{" 0 9 * * 5 ", false},
		{"", true},
		{"every day", true},
		{"0 6 * *", true},
		{"0 0 6 * * *", true}, // seconds field not accepted
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNextUsesLocation(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	s, err := New("0 6 * * *", est, func(context.Context) error { return nil }, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 12:00 UTC is 07:00 EST, so the next 06:00 EST is tomorrow
	next := s.Next(time.Date(2020, 2, 5, 12, 0, 0, 0, time.UTC))
	want := time.Date(2020, 2, 6, 6, 0, 0, 0, est)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestRunRepeatsAndSurvivesErrors(t *testing.T) {
	var calls atomic.Int32
	job := func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}

	var logs bytes.Buffer
	s, err := New("* * * * *", time.UTC, job, zerolog.New(&logs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Fire every 10ms instead of every minute
	s.schedule = everyInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if calls.Load() < 3 {
		t.Errorf("expected at least 3 runs, got %d", calls.Load())
	}
	if !bytes.Contains(logs.Bytes(), []byte("scheduled run failed")) {
		t.Error("expected failed runs to be logged")
	}
}

func TestInvalidSchedule(t *testing.T) {
	if _, err := New("nope", nil, nil, zerolog.Nop()); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}

type everyInterval time.Duration

func (e everyInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

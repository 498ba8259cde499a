package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dennisdiepolder/cdrstats/internal/types"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	as_of        TEXT NOT NULL,
	month        TEXT NOT NULL,
	earliest     TEXT NOT NULL DEFAULT '',
	latest       TEXT NOT NULL DEFAULT '',
	row_count    INTEGER NOT NULL DEFAULT 0,
	anomalies    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);

CREATE TABLE IF NOT EXISTS number_stats (
	run_id              TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	number              TEXT NOT NULL,
	total               INTEGER NOT NULL,
	sent_to_voicemail   INTEGER NOT NULL,
	sent_to_attendant   INTEGER NOT NULL,
	forwarded           INTEGER NOT NULL,
	attempted_cell_ring INTEGER NOT NULL,
	voice_portal_access INTEGER NOT NULL,
	incoming_week       INTEGER NOT NULL,
	incoming_month      INTEGER NOT NULL,
	incoming_60         INTEGER NOT NULL,
	outgoing_week       INTEGER NOT NULL,
	outgoing_month      INTEGER NOT NULL,
	outgoing_60         INTEGER NOT NULL,
	PRIMARY KEY (run_id, number)
);

CREATE TABLE IF NOT EXISTS daily_counts (
	run_id   TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	date_key TEXT NOT NULL,
	count    INTEGER NOT NULL,
	PRIMARY KEY (run_id, date_key)
);
`

// SQLiteStore implements Store on a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (and migrates) the database at path
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer; go-sqlite3 connections do not share in-memory state
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, run types.RunRecord, numbers []types.NumberStatsRecord, daily []types.DailyCountRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, generated_at, source, as_of, month, earliest, latest, row_count, anomalies)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.GeneratedAt, run.Source, run.AsOf, run.Month,
		run.Earliest, run.Latest, run.Rows, run.Anomalies,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	numberStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO number_stats (run_id, number, total,
			sent_to_voicemail, sent_to_attendant, forwarded, attempted_cell_ring, voice_portal_access,
			incoming_week, incoming_month, incoming_60, outgoing_week, outgoing_month, outgoing_60)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare number stats insert: %w", err)
	}
	defer numberStmt.Close()

	for _, n := range numbers {
		_, err := numberStmt.ExecContext(ctx, run.RunID, n.Number, n.Total,
			n.SentToVoicemail, n.SentToAttendant, n.Forwarded, n.AttemptedCellRing, n.VoicePortalAccess,
			n.IncomingWeek, n.IncomingMonth, n.Incoming60, n.OutgoingWeek, n.OutgoingMonth, n.Outgoing60,
		)
		if err != nil {
			return fmt.Errorf("failed to save number stats for %s: %w", n.Number, err)
		}
	}

	dailyStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO daily_counts (run_id, date_key, count) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare daily counts insert: %w", err)
	}
	defer dailyStmt.Close()

	for _, d := range daily {
		if _, err := dailyStmt.ExecContext(ctx, run.RunID, d.DateKey, d.Count); err != nil {
			return fmt.Errorf("failed to save daily count for %s: %w", d.DateKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug().
		Str("run_id", run.RunID).
		Int("numbers", len(numbers)).
		Int("days", len(daily)).
		Msg("run saved")
	return nil
}

const runColumns = `run_id, generated_at, source, as_of, month, earliest, latest, row_count, anomalies`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (types.RunRecord, error) {
	var r types.RunRecord
	err := row.Scan(&r.RunID, &r.GeneratedAt, &r.Source, &r.AsOf, &r.Month,
		&r.Earliest, &r.Latest, &r.Rows, &r.Anomalies)
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]types.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY generated_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (types.RunRecord, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return types.RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetNumberStats(ctx context.Context, runID string) ([]types.NumberStatsRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, number, total,
			sent_to_voicemail, sent_to_attendant, forwarded, attempted_cell_ring, voice_portal_access,
			incoming_week, incoming_month, incoming_60, outgoing_week, outgoing_month, outgoing_60
		 FROM number_stats WHERE run_id = ? ORDER BY number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query number stats: %w", err)
	}
	defer rows.Close()

	var records []types.NumberStatsRecord
	for rows.Next() {
		var n types.NumberStatsRecord
		if err := rows.Scan(&n.RunID, &n.Number, &n.Total,
			&n.SentToVoicemail, &n.SentToAttendant, &n.Forwarded, &n.AttemptedCellRing, &n.VoicePortalAccess,
			&n.IncomingWeek, &n.IncomingMonth, &n.Incoming60, &n.OutgoingWeek, &n.OutgoingMonth, &n.Outgoing60,
		); err != nil {
			return nil, fmt.Errorf("failed to scan number stats: %w", err)
		}
		records = append(records, n)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetDailyCounts(ctx context.Context, runID string) ([]types.DailyCountRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, date_key, count FROM daily_counts WHERE run_id = ? ORDER BY date_key`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	var records []types.DailyCountRecord
	for rows.Next() {
		var d types.DailyCountRecord
		if err := rows.Scan(&d.RunID, &d.DateKey, &d.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		records = append(records, d)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	s.logger.Info().Str("run_id", runID).Msg("run deleted")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("run not found")

// Store persists the history of report runs
type Store interface {
	SaveReport(ctx context.Context, run types.RunRecord, numbers []types.NumberStatsRecord, daily []types.DailyCountRecord) error
	ListRuns(ctx context.Context) ([]types.RunRecord, error) // newest first
	GetRun(ctx context.Context, runID string) (types.RunRecord, error)
	GetNumberStats(ctx context.Context, runID string) ([]types.NumberStatsRecord, error)
	GetDailyCounts(ctx context.Context, runID string) ([]types.DailyCountRecord, error)
	DeleteRun(ctx context.Context, runID string) error
	Close() error
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("component", "storage").Logger()

	switch cfg.Mode {
	case ModeSQLite:
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case ModeLocal, ModeAWS:
		return NewDynamoDBStore(ctx, cfg.Mode, cfg.Dynamo, logger)
	case ModeNone, "":
		logger.Info().Msg("Run history disabled (STORE_MODE=none)")
		return NewNoopStore(), nil
	}
	return nil, fmt.Errorf("unknown store mode %q", cfg.Mode)
}

// NoopStore is a no-op implementation when history is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveReport(_ context.Context, _ types.RunRecord, _ []types.NumberStatsRecord, _ []types.DailyCountRecord) error {
	return nil
}
func (s *NoopStore) ListRuns(_ context.Context) ([]types.RunRecord, error) { return nil, nil }
func (s *NoopStore) GetRun(_ context.Context, _ string) (types.RunRecord, error) {
	return types.RunRecord{}, ErrRunNotFound
}
func (s *NoopStore) GetNumberStats(_ context.Context, _ string) ([]types.NumberStatsRecord, error) {
	return nil, ErrRunNotFound
}
func (s *NoopStore) GetDailyCounts(_ context.Context, _ string) ([]types.DailyCountRecord, error) {
	return nil, ErrRunNotFound
}
func (s *NoopStore) DeleteRun(_ context.Context, _ string) error { return ErrRunNotFound }
func (s *NoopStore) Close() error                                { return nil }

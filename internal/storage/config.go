package storage

import "os"

// Mode selects the history backend
type Mode string

const (
	ModeNone   Mode = "none"
	ModeSQLite Mode = "sqlite"
	ModeLocal  Mode = "local" // DynamoDB Local
	ModeAWS    Mode = "aws"
)

// ParseMode maps a string onto a Mode; anything unknown is ModeNone
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case ModeSQLite, ModeLocal, ModeAWS:
		return m
	}
	return ModeNone
}

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Endpoint    string // for local mode
	Region      string
	RunsTable   string
	NumberTable string
	DailyTable  string
}

// Config holds the storage configuration
type Config struct {
	Mode       Mode
	SQLitePath string
	Dynamo     DynamoConfig
}

// LoadConfig loads the storage config from environment
func LoadConfig() Config {
	return Config{
		Mode:       ParseMode(getEnv("STORE_MODE", string(ModeNone))),
		SQLitePath: getEnv("SQLITE_PATH", "cdrstats.db"),
		Dynamo: DynamoConfig{
			Endpoint:    getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:      getEnv("DYNAMO_REGION", "us-east-1"),
			RunsTable:   getEnv("DYNAMO_RUNS_TABLE", "cdrstats-runs"),
			NumberTable: getEnv("DYNAMO_NUMBER_STATS_TABLE", "cdrstats-number-stats"),
			DailyTable:  getEnv("DYNAMO_DAILY_COUNTS_TABLE", "cdrstats-daily-counts"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

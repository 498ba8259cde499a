package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`

	// Report parameters
	UTCOffset       string `yaml:"utc_offset"`
	Month           string `yaml:"month"` // YYYY-MM
	AsOf            string `yaml:"as_of"` // RFC3339 or YYYY-MM-DD; empty means wall clock
	WeekDays        int    `yaml:"week_days"`
	RetentionDays   int    `yaml:"retention_days"`
	GraceDays       int    `yaml:"grace_days"`
	AttendantNumber string `yaml:"attendant_number"`
	VoicePortalName string `yaml:"voice_portal_name"`

	// Cron expression for rebuilding the served export; empty disables
	Schedule string `yaml:"schedule"`

	// Slack delivery
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackChannel  string `yaml:"slack_channel"`

	// Derived by Resolve
	Location   *time.Location `yaml:"-"`
	MonthStart time.Time      `yaml:"-"`
	AsOfTime   time.Time      `yaml:"-"` // zero means wall clock
}

func defaults() *Config {
	return &Config{
		Port:            "8080",
		AllowedOrigins:  []string{"http://localhost:5173"},
		LogLevel:        "info",
		UTCOffset:       "-05:00",
		Month:           "2020-02",
		WeekDays:        7,
		RetentionDays:   60,
		GraceDays:       1,
		AttendantNumber: "500",
		VoicePortalName: "Voice Portal Voice Portal",
	}
}

// Load loads configuration from .env, the YAML file at CONFIG_PATH
// (default cdrstats.yaml) and environment variables, in that order of
// increasing precedence.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := defaults()

	configPath := getEnv("CONFIG_PATH", "cdrstats.yaml")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	envOverride(&config.Port, "PORT")
	envOverride(&config.LogLevel, "LOG_LEVEL")
	envOverride(&config.UTCOffset, "CDR_UTC_OFFSET")
	envOverride(&config.Month, "CDR_MONTH")
	envOverride(&config.AsOf, "CDR_AS_OF")
	envOverride(&config.AttendantNumber, "CDR_ATTENDANT_NUMBER")
	envOverride(&config.VoicePortalName, "CDR_VOICE_PORTAL_NAME")
	envOverride(&config.Schedule, "CDR_SCHEDULE")
	envOverride(&config.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&config.SlackChannel, "SLACK_CHANNEL")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}
	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	for _, n := range []struct {
		dst *int
		key string
	}{
		{&config.WeekDays, "CDR_WEEK_DAYS"},
		{&config.RetentionDays, "CDR_RETENTION_DAYS"},
		{&config.GraceDays, "CDR_GRACE_DAYS"},
	} {
		if err := envOverrideInt(n.dst, n.key); err != nil {
			return nil, err
		}
	}

	if err := config.Resolve(); err != nil {
		return nil, err
	}
	return config, nil
}

// Resolve validates the report parameters and fills the derived fields.
// It is called again after command line flags changed the raw values.
func (c *Config) Resolve() error {
	if c.WeekDays <= 0 {
		return fmt.Errorf("invalid week days %d: must be positive", c.WeekDays)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("invalid retention days %d: must be positive", c.RetentionDays)
	}
	if c.GraceDays < 0 {
		return fmt.Errorf("invalid grace days %d: must not be negative", c.GraceDays)
	}

	loc, err := ParseOffset(c.UTCOffset)
	if err != nil {
		return err
	}
	month, err := ParseMonth(c.Month, loc)
	if err != nil {
		return err
	}
	asOf, err := ParseAsOf(c.AsOf, loc)
	if err != nil {
		return err
	}

	c.Location = loc
	c.MonthStart = month
	c.AsOfTime = asOf
	return nil
}

var offsetRE = regexp.MustCompile(`^([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseOffset parses a fixed UTC offset such as "-05:00", "+0530", "-5" or "UTC"
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "UTC") || s == "Z" {
		return time.UTC, nil
	}

	m := offsetRE.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid UTC offset %q", s)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes := 0
	if m[3] != "" {
		minutes, _ = strconv.Atoi(m[3])
	}
	if hours > 14 || minutes >= 60 {
		return nil, fmt.Errorf("invalid UTC offset %q: out of range", s)
	}

	secs := hours*3600 + minutes*60
	if m[1] == "-" {
		secs = -secs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s%02d:%02d", m[1], hours, minutes), secs), nil
}

// ParseMonth parses YYYY-MM into the first instant of that month in loc
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t, nil
}

// ParseAsOf parses the report run time. Empty means wall clock and yields
// the zero time.
func ParseAsOf(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid as-of time %q", s)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envOverride(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func envOverrideInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

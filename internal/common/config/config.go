package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

const (
	DefaultMaxStops       = 400
	DefaultOutputFile     = "data/gtfs-data.json"
	DefaultRequestTimeout = 5 * time.Minute
)

type Config struct {
	Feed     FeedConfig
	Snapshot SnapshotConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

// FeedConfig selects which GTFS static feed to download.
type FeedConfig struct {
	URL            string        `validate:"omitempty,url"`
	Agency         string        `validate:"omitempty,excludesall=/?#"`
	Category       string        `validate:"omitempty,excludesall=/?#&"`
	CatalogFile    string
	RequestTimeout time.Duration `validate:"gt=0"`
}

type SnapshotConfig struct {
	MaxStops   int    `validate:"gte=0"`
	OutputFile string `validate:"required"`
}

// ScheduleConfig controls repeated runs. Zero values mean run once and
// always refresh.
type ScheduleConfig struct {
	Interval time.Duration `validate:"gte=0"`
	MaxAge   time.Duration `validate:"gte=0"`
}

type LoggingConfig struct {
	Level      string `validate:"oneof=debug info warn error"`
	FilePath   string
	DiscordURL string `validate:"omitempty,url"`
}

// LoadEnvFile loads a .env file into the process environment. A missing
// file is not an error; existing variables are never overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	maxStops, err := getIntEnv("GTFS_MAX_STOPS", DefaultMaxStops)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Feed: FeedConfig{
			URL:            getEnv("GTFS_URL", ""),
			Agency:         strings.ToLower(getEnv("GTFS_AGENCY", "")),
			Category:       strings.ToLower(getEnv("GTFS_CATEGORY", "")),
			CatalogFile:    getEnv("GTFS_CATALOG_FILE", ""),
			RequestTimeout: getDurationEnv("GTFS_REQUEST_TIMEOUT", DefaultRequestTimeout),
		},
		Snapshot: SnapshotConfig{
			MaxStops:   maxStops,
			OutputFile: getEnv("GTFS_OUTPUT_FILE", DefaultOutputFile),
		},
		Schedule: ScheduleConfig{
			Interval: getDurationEnv("GTFS_REFRESH_INTERVAL", 0),
			MaxAge:   getDurationEnv("GTFS_REFRESH_MAX_AGE", 0),
		},
		Logging: LoggingConfig{
			Level:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
			FilePath:   getEnv("LOG_FILE", ""),
			DiscordURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// BindFlags registers command-line overrides on fs. Defaults are the
// values already in cfg, so unset flags keep the environment's values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVarP(&c.Feed.URL, "url", "u", c.Feed.URL, "explicit GTFS zip URL, bypasses the operator catalog")
	fs.StringVarP(&c.Feed.Agency, "agency", "a", c.Feed.Agency, "agency to download, e.g. ktmb or prasarana")
	fs.StringVarP(&c.Feed.Category, "category", "c", c.Feed.Category, "category for multi-category agencies")
	fs.StringVar(&c.Feed.CatalogFile, "catalog", c.Feed.CatalogFile, "YAML operator catalog replacing the built-in one")
	fs.DurationVar(&c.Feed.RequestTimeout, "timeout", c.Feed.RequestTimeout, "deadline for each download attempt")
	fs.IntVarP(&c.Snapshot.MaxStops, "max-stops", "n", c.Snapshot.MaxStops, "maximum number of stops kept in the snapshot")
	fs.StringVarP(&c.Snapshot.OutputFile, "output", "o", c.Snapshot.OutputFile, "snapshot output path")
	fs.DurationVar(&c.Schedule.Interval, "interval", c.Schedule.Interval, "rerun every interval; 0 runs once")
	fs.DurationVar(&c.Schedule.MaxAge, "max-age", c.Schedule.MaxAge, "skip the refresh while the snapshot is younger than this; 0 always refreshes")
	fs.StringVar(&c.Logging.Level, "log-level", c.Logging.Level, "debug, info, warn or error")
	fs.StringVar(&c.Logging.FilePath, "log-file", c.Logging.FilePath, "rotating log file path")
}

// Normalize lower-cases selectors that may have been set by flags.
func (c *Config) Normalize() {
	c.Feed.Agency = strings.ToLower(strings.TrimSpace(c.Feed.Agency))
	c.Feed.Category = strings.ToLower(strings.TrimSpace(c.Feed.Category))
	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}

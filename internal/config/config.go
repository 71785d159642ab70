package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"dietledger/internal/log"
	"dietledger/internal/progress"
)

const DefaultSchedule = "07:00=15,10:30=25,13:00=50,16:30=65,19:30=85,21:00=100"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	// Domain tables
	CatalogFile    string
	FoodsDir       string
	Timezone       string
	TargetSchedule string

	// Month history
	MonthCacheTTL  time.Duration
	MonthCacheSize int
	FetchAttempts  int
	FetchBaseDelay time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recommendations
	GeminiAPIKey string
	GeminiModel  string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	BackfillDays int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:   getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/dietledger.db"),
		DataDirectory: getEnv("MEMORY_DATA_DIR", "data"),

		CatalogFile:    getEnv("CATALOG_FILE", ""),
		FoodsDir:       getEnv("FOODS_DIR", "./data/foods"),
		Timezone:       getEnv("TIMEZONE", "Local"),
		TargetSchedule: getEnv("TARGET_SCHEDULE", DefaultSchedule),

		MonthCacheTTL:  getEnvDuration("MONTH_CACHE_TTL", 300*time.Second),
		MonthCacheSize: getEnvInt("MONTH_CACHE_SIZE", 24),
		FetchAttempts:  getEnvInt("FETCH_ATTEMPTS", 3),
		FetchBaseDelay: getEnvDuration("FETCH_BASE_DELAY", time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "dietledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger.changed"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Progress"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		BackfillDays: getEnvInt("WORKER_BACKFILL_DAYS", 7),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.CatalogFile != "" {
		if _, err := os.Stat(c.CatalogFile); err != nil {
			errors = append(errors, fmt.Sprintf("catalog file '%s' is not readable: %v", c.CatalogFile, err))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if _, err := progress.ParseSchedule(c.TargetSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid target schedule: %v", err))
	}

	if c.MonthCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid month cache TTL %v: must be positive", c.MonthCacheTTL))
	}
	if c.MonthCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid month cache size %d: must be at least 1", c.MonthCacheSize))
	}
	if c.FetchAttempts < 1 || c.FetchAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid fetch attempts %d: must be between 1 and 10", c.FetchAttempts))
	}
	if c.FetchBaseDelay < 0 || c.FetchBaseDelay > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch base delay %v: must be between 0 and 1m", c.FetchBaseDelay))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.BackfillDays < 0 || c.BackfillDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid backfill days %d: must be between 0 and 366", c.BackfillDays))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Schedule parses TargetSchedule, falling back to the default table.
func (c *Config) Schedule() *progress.Schedule {
	s, err := progress.ParseSchedule(c.TargetSchedule)
	if err != nil {
		return progress.DefaultSchedule()
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare numbers are seconds, e.g. MONTH_CACHE_TTL=300.
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}

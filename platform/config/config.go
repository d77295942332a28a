// Package config loads and validates application configuration from the
// environment. Consumers receive narrow interfaces rather than the full
// Config struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL   string
	MigrationsDir string

	WarehouseSchema string

	CORSAllowAll bool
	CORSOrigins  []string

	RedisURL         string
	AsynqQueue       string
	AsynqConcurrency int
	RunInterval      time.Duration

	ActiveCampaigns []string

	FluTopicIDs             []string
	WindowDays              int
	MaxCandidateAgeYears    int
	NeverCompleterAgeMonths int
	EligibleDueStates       []string
	GuarantorDenylist       []string
	DiagnosisCodePrefix     string
	PhoneRegion             string
}

// DatabaseConfig is the config surface needed by the database layer
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsDir() string
}

// HTTPConfig is the config surface needed by the HTTP server
type HTTPConfig interface {
	GetHTTPAddr() string
	GetEnv() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// SchedulerConfig is the config surface needed by the scheduler
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetRunInterval() time.Duration
	GetActiveCampaigns() []string
}

// EngineConfig is the config surface needed by the campaign engine
type EngineConfig interface {
	GetWarehouseSchema() string
	GetWindowDays() int
	GetTopicIDs(campaign string) []string
	GetMaxCandidateAgeYears() int
	GetNeverCompleterAgeMonths() int
	GetEligibleDueStates() []string
	GetGuarantorDenylist() []string
	GetDiagnosisCodePrefix() string
	GetPhoneRegion() string
	GetActiveCampaigns() []string
}

// Load reads configuration from environment variables. A .env file is
// loaded if present. Missing required values or malformed engine
// parameters are an error: the engine must not start with a partial
// configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		WarehouseSchema: getEnv("WAREHOUSE_SCHEMA", "warehouse"),

		RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379"),
		AsynqQueue: getEnv("ASYNQ_QUEUE", "campaigns"),

		DiagnosisCodePrefix: getEnv("DIAGNOSIS_CODE_PREFIX", "J45"),
		PhoneRegion:         getEnv("PHONE_REGION", "US"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	corsOrigins := splitCSV(os.Getenv("CORS_ORIGINS"))
	if len(corsOrigins) == 0 {
		cfg.CORSAllowAll = true
	} else {
		cfg.CORSOrigins = corsOrigins
	}

	var err error
	if cfg.AsynqConcurrency, err = getIntEnv("ASYNQ_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = getDurationEnv("RUN_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.ActiveCampaigns = splitCSV(getEnv("ACTIVE_CAMPAIGNS", "FLU_VACCINE"))
	if len(cfg.ActiveCampaigns) == 0 {
		return nil, fmt.Errorf("ACTIVE_CAMPAIGNS must name at least one campaign")
	}

	cfg.FluTopicIDs = splitCSV(getEnv("FLU_TOPIC_IDS", "FLU,INFLUENZA,FLU_VACCINE"))

	if cfg.WindowDays, err = getIntEnv("WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.WindowDays < 1 {
		return nil, fmt.Errorf("WINDOW_DAYS must be positive, got %d", cfg.WindowDays)
	}

	if cfg.MaxCandidateAgeYears, err = getIntEnv("MAX_CANDIDATE_AGE_YEARS", 18); err != nil {
		return nil, err
	}
	if cfg.MaxCandidateAgeYears < 1 {
		return nil, fmt.Errorf("MAX_CANDIDATE_AGE_YEARS must be positive, got %d", cfg.MaxCandidateAgeYears)
	}

	if cfg.NeverCompleterAgeMonths, err = getIntEnv("NEVER_COMPLETER_AGE_MONTHS", 24); err != nil {
		return nil, err
	}
	if cfg.NeverCompleterAgeMonths < 1 {
		return nil, fmt.Errorf("NEVER_COMPLETER_AGE_MONTHS must be positive, got %d", cfg.NeverCompleterAgeMonths)
	}

	cfg.EligibleDueStates = splitCSV(getEnv("ELIGIBLE_DUE_STATES", "due_soon,due_now,overdue"))
	if len(cfg.EligibleDueStates) == 0 {
		return nil, fmt.Errorf("ELIGIBLE_DUE_STATES must name at least one state")
	}

	cfg.GuarantorDenylist = splitCSV(getEnv("GUARANTOR_DENYLIST",
		"COUNTY,FOSTER,CUSTODY,STATE OF,CHILDREN SERVICES,DCFS"))

	return cfg, nil
}

// GetDatabaseURL returns the database connection string
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// GetMigrationsDir returns the directory containing SQL migrations
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// GetHTTPAddr returns the HTTP listen address
func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

// GetEnv returns the application environment name
func (c *Config) GetEnv() string { return c.Env }

// GetCORSAllowAll reports whether all origins are allowed
func (c *Config) GetCORSAllowAll() bool { return c.CORSAllowAll }

// GetCORSOrigins returns the allowed CORS origins
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// GetRedisURL returns the Redis connection string
func (c *Config) GetRedisURL() string { return c.RedisURL }

// GetAsynqQueueName returns the asynq queue name
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueue }

// GetAsynqConcurrency returns the asynq worker concurrency
func (c *Config) GetAsynqConcurrency() int { return c.AsynqConcurrency }

// GetRunInterval returns the interval between scheduled campaign runs
func (c *Config) GetRunInterval() time.Duration { return c.RunInterval }

// GetActiveCampaigns returns the campaigns enabled for scheduled runs
func (c *Config) GetActiveCampaigns() []string { return c.ActiveCampaigns }

// GetWarehouseSchema returns the warehouse schema holding source tables
func (c *Config) GetWarehouseSchema() string { return c.WarehouseSchema }

// GetWindowDays returns the appointment lookahead window in days
func (c *Config) GetWindowDays() int { return c.WindowDays }

// GetTopicIDs returns the topic aliases recognized for a campaign
func (c *Config) GetTopicIDs(campaign string) []string {
	switch campaign {
	case "FLU_VACCINE":
		return c.FluTopicIDs
	default:
		return []string{campaign}
	}
}

// GetMaxCandidateAgeYears returns the exclusive candidate age ceiling
func (c *Config) GetMaxCandidateAgeYears() int { return c.MaxCandidateAgeYears }

// GetNeverCompleterAgeMonths returns the age threshold above which a
// candidate with no completion on record is excluded
func (c *Config) GetNeverCompleterAgeMonths() int { return c.NeverCompleterAgeMonths }

// GetEligibleDueStates returns the due states that qualify a candidate
func (c *Config) GetEligibleDueStates() []string { return c.EligibleDueStates }

// GetGuarantorDenylist returns guarantor name patterns that exclude a subject
func (c *Config) GetGuarantorDenylist() []string { return c.GuarantorDenylist }

// GetDiagnosisCodePrefix returns the diagnosis code prefix for the
// clinical condition flag
func (c *Config) GetDiagnosisCodePrefix() string { return c.DiagnosisCodePrefix }

// GetPhoneRegion returns the default region for phone normalization
func (c *Config) GetPhoneRegion() string { return c.PhoneRegion }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

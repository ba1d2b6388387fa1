package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SCHEDULER_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Store drivers accepted by DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port         int
	StoreDriver  string
	DatabaseURL  string
	SQLitePath   string
	StoreTimeout time.Duration

	JWTSecret     string
	AdminEmail    string
	AdminPassword string
	CORSOrigins   []string

	Twilio TwilioConfig

	ReportsDir          string
	BackupDir           string
	BackupEncryptionKey string
	BackupRetentionDays int

	RedisURL         string
	SchedulerEnabled bool
	Timezone         *time.Location
	CronSpecs        map[string]string
}

// TwilioConfig holds the WhatsApp transport and webhook settings.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	From              string
	ValidateSignature bool
	PublicBaseURL     string
	SendRatePerSec    float64
}

// Enabled reports whether real sends are configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

// LoadDotEnv reads .env files if present. Values already in the
// environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "5000"))
	if err != nil {
		return nil, fmt.Errorf("PORT must be a number: %w", err)
	}

	driver := strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite))
	dbURL := getEnv("DATABASE_URL", "")
	switch driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if dbURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", driver)
	}

	storeTimeout, err := time.ParseDuration(getEnv("STORE_TIMEOUT", "5s"))
	if err != nil || storeTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be a positive duration")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	backupKey := getEnv("BACKUP_ENCRYPTION_KEY", "")
	if backupKey != "" && len(backupKey) != 32 {
		return nil, fmt.Errorf("BACKUP_ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(backupKey))
	}

	retention, err := strconv.Atoi(getEnv("BACKUP_RETENTION_DAYS", "7"))
	if err != nil || retention <= 0 {
		return nil, fmt.Errorf("BACKUP_RETENTION_DAYS must be a positive number")
	}

	sendRate, err := strconv.ParseFloat(getEnv("SEND_RATE_PER_SEC", "5"), 64)
	if err != nil || sendRate <= 0 {
		return nil, fmt.Errorf("SEND_RATE_PER_SEC must be a positive number")
	}

	tz, err := time.LoadLocation(getEnv("SCHEDULER_TIMEZONE", "Africa/Nairobi"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8501"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cronSpecs := map[string]string{}
	for key, job := range map[string]string{
		"CRON_REMINDERS": "reminder_sweep",
		"CRON_BILLING":   "billing_sweep",
		"CRON_BACKUP":    "daily_backup",
		"CRON_REPORTS":   "weekly_reports",
	} {
		if v := getEnv(key, ""); v != "" {
			cronSpecs[job] = v
		}
	}

	return &Config{
		Port:         port,
		StoreDriver:  driver,
		DatabaseURL:  dbURL,
		SQLitePath:   getEnv("SQLITE_PATH", "chama.db"),
		StoreTimeout: storeTimeout,

		JWTSecret:     jwtSecret,
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@chama.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		CORSOrigins:   origins,

		Twilio: TwilioConfig{
			AccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			From:              getEnv("TWILIO_PHONE_NUMBER", ""),
			ValidateSignature: getBool("TWILIO_VALIDATE_SIGNATURE", false),
			PublicBaseURL:     getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
			SendRatePerSec:    sendRate,
		},

		ReportsDir:          getEnv("REPORTS_DIR", "reports"),
		BackupDir:           getEnv("BACKUP_DIR", "backups"),
		BackupEncryptionKey: backupKey,
		BackupRetentionDays: retention,

		RedisURL:         getEnv("REDIS_URL", ""),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),
		Timezone:         tz,
		CronSpecs:        cronSpecs,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration. It is built once in main and
// passed down explicitly; nothing reads the environment after startup.
type Config struct {
	Server   ServerConfig
	Queue    QueueConfig
	Ledger   LedgerConfig
	Telegram TelegramConfig
	Gemini   GeminiConfig
	FDC      FDCConfig
	Sheets   SheetsConfig
}

// ServerConfig holds webhook server configuration
type ServerConfig struct {
	Addr     string
	Timezone string
}

// QueueConfig holds work queue configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
}

// LedgerConfig holds idempotency ledger configuration
type LedgerConfig struct {
	// Driver selects the backing store: "sqlite", "postgres" or "memory".
	Driver      string
	SQLitePath  string
	PostgresDSN string
	Retention   time.Duration
	// StrictInProgress makes Begin treat ALREADY_IN_PROGRESS as a duplicate
	// instead of proceeding. Default off: a stuck PROCESSING row is assumed
	// to be a crashed prior attempt.
	StrictInProgress bool
}

// TelegramConfig holds bot API configuration
type TelegramConfig struct {
	BotToken     string
	ReportChatID int64
	SendRate     float64
	SendBurst    int
	Timeout      time.Duration
}

// GeminiConfig holds the vision/picker model configuration
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// FDCConfig holds FoodData Central configuration
type FDCConfig struct {
	APIKey   string
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// SheetsConfig holds spreadsheet store configuration
type SheetsConfig struct {
	WorkbookPath     string
	MealsSheetName   string
	ReportsSheetName string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     getEnv("HTTP_ADDR", ":8080"),
			Timezone: getEnv("TIMEZONE", "Asia/Jerusalem"),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
			MaxAttempts:    getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			RetryDelay:     getEnvAsDuration("QUEUE_RETRY_DELAY", 10*time.Second),
		},
		Ledger: LedgerConfig{
			Driver:           getEnv("LEDGER_DRIVER", "sqlite"),
			SQLitePath:       getEnv("LEDGER_SQLITE_PATH", "./nutrilog-ledger.db"),
			PostgresDSN:      getEnv("LEDGER_POSTGRES_DSN", ""),
			Retention:        getEnvAsDuration("LEDGER_RETENTION", 24*time.Hour),
			StrictInProgress: getEnvAsBool("LEDGER_STRICT_IN_PROGRESS", false),
		},
		Telegram: TelegramConfig{
			BotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
			ReportChatID: getEnvAsInt64("TELEGRAM_REPORT_CHAT_ID", 0),
			SendRate:     getEnvAsFloat64("TELEGRAM_SEND_RATE", 25),
			SendBurst:    getEnvAsInt("TELEGRAM_SEND_BURST", 5),
			Timeout:      getEnvAsDuration("TELEGRAM_TIMEOUT", 30*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
		},
		FDC: FDCConfig{
			APIKey:   getEnv("FDC_API_KEY", ""),
			BaseURL:  getEnv("FDC_BASE_URL", "https://api.nal.usda.gov/fdc/v1"),
			PageSize: getEnvAsInt("FDC_PAGE_SIZE", 10),
			Timeout:  getEnvAsDuration("FDC_TIMEOUT", 15*time.Second),
		},
		Sheets: SheetsConfig{
			WorkbookPath:     getEnv("SHEETS_WORKBOOK_PATH", "./nutrilog.xlsx"),
			MealsSheetName:   getEnv("MEALS_SHEET_NAME", "Meals"),
			ReportsSheetName: getEnv("REPORTS_SHEET_NAME", "Daily_Reports"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return NewAppError("CONFIG_ERROR", "TELEGRAM_BOT_TOKEN is required", ErrInvalidInput)
	}
	if c.Gemini.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.FDC.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "FDC_API_KEY is required", ErrInvalidInput)
	}
	if c.Ledger.Driver == "postgres" && c.Ledger.PostgresDSN == "" {
		return NewAppError("CONFIG_ERROR", "LEDGER_POSTGRES_DSN is required for the postgres ledger", ErrInvalidInput)
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return NewAppError("CONFIG_ERROR", "TIMEZONE is not a valid IANA zone", err)
	}
	return nil
}

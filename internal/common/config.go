package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Ingest   IngestConfig
	Queue    QueueConfig
	Server   ServerConfig
	Bus      BusConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | mysql | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// LLMConfig holds model-inference configuration
type LLMConfig struct {
	Provider        string // openai | gemini
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	Timeout         time.Duration
	LenientOptional bool
}

// PipelineConfig holds orchestrator configuration
type PipelineConfig struct {
	LayoutsFile     string
	PersistWorkers  int
	MinVisibleRatio float64
}

// IngestConfig holds image acquisition configuration
type IngestConfig struct {
	WatchDirs []string
	LedgerDir string
	Debounce  time.Duration
}

// QueueConfig holds worker queue configuration
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	GRPCAddr string
}

// BusConfig holds result publishing configuration
type BusConfig struct {
	NATSURL string
	Subject string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	llmCfg := LLMConfig{
		Provider:        provider,
		Temperature:     getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
		Timeout:         getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		LenientOptional: getEnvAsBool("LLM_LENIENT_OPTIONAL", true),
	}
	switch provider {
	case "gemini":
		llmCfg.Model = getEnv("GEMINI_MODEL", "gemini-2.0-flash")
		llmCfg.APIKey = getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	default:
		llmCfg.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")
		llmCfg.APIKey = getEnv("OPENAI_API_KEY", "")
		llmCfg.BaseURL = getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		LLM: llmCfg,
		Pipeline: PipelineConfig{
			LayoutsFile:     getEnv("LAYOUTS_FILE", ""),
			PersistWorkers:  getEnvAsInt("PIPELINE_PERSIST_WORKERS", 4),
			MinVisibleRatio: getEnvAsFloat64("PIPELINE_MIN_VISIBLE_RATIO", 0),
		},
		Ingest: IngestConfig{
			WatchDirs: getEnvAsList("WATCH_DIRS"),
			LedgerDir: getEnv("LEDGER_DIR", ""),
			Debounce:  getEnvAsDuration("WATCH_DEBOUNCE", 750*time.Millisecond),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
		},
		Bus: BusConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "panels.results"),
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvAsList splits a comma-separated value, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings every binary needs: storage and model access.
func (c *Config) Validate() error {
	v := NewValidator().
		Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "mysql", "sqlite")).
		Field("DB_URL", c.Database.DSN, Required).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf("openai", "gemini")).
		Field("LLM_TIMEOUT", c.LLM.Timeout.Seconds(), Between(1, 3600)).
		Field("PIPELINE_MIN_VISIBLE_RATIO", c.Pipeline.MinVisibleRatio, Between(0, 1)).
		Check(c.Pipeline.PersistWorkers > 0, "PIPELINE_PERSIST_WORKERS", c.Pipeline.PersistWorkers, "must be positive")
	if c.LLM.APIKey == "" {
		key := "OPENAI_API_KEY"
		if c.LLM.Provider == "gemini" {
			key = "GEMINI_API_KEY"
		}
		v.Check(false, key, "", "is required")
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// ValidateStorage checks only the database settings (provisioning and health tools).
func (c *Config) ValidateStorage() error {
	v := NewValidator().
		Field("DB_DRIVER", c.Database.Driver, OneOf("postgres", "mysql", "sqlite")).
		Field("DB_URL", c.Database.DSN, Required)
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

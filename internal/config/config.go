package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full runtime configuration. Sub-structs are handed to the
// components that need them at construction time.
type Config struct {
	Server   Server
	Pipeline Pipeline
	Jobs     Jobs
	Reaper   Reaper
	Database Database
	Storage  Storage
	AI       AI
	Sinks    Sinks
}

type Server struct {
	Port     string
	LogLevel string
	LogJSON  bool
}

// Pipeline tunes text chunking, extraction and normalization.
type Pipeline struct {
	ChunkLines       int
	MinSignalLines   int
	ChunkConcurrency int
	PDFTextCap       int
	InsertBatchSize  int
	RawSnippetLimit  int
	DefaultCurrency  string
	FallbackCategory string
}

// Jobs configures submission limits and the ingestion queue.
type Jobs struct {
	MaxFileBytes  int64
	RetryLimit    int
	QueueBackend  string
	QueueBuffer   int
	Workers       int
	RedisURL      string
	RedisQueueKey string
}

type Reaper struct {
	RetentionDays int
	BatchSize     int
	Schedule      string
}

type Database struct {
	Driver string
	DSN    string
}

type Storage struct {
	Backend         string
	Bucket          string
	CredentialsFile string
}

// AI configures the structured extraction capability.
type AI struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	GeminiModel string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Sinks configures optional destinations for confirmed transactions.
type Sinks struct {
	BigQueryProject  string
	BigQueryDataset  string
	NotionToken      string
	NotionDatabaseID string
}

var defaults = map[string]any{
	"server.port":      "8080",
	"server.log_level": "info",
	"server.log_json":  false,

	"pipeline.chunk_lines":       40,
	"pipeline.min_signal_lines":  3,
	"pipeline.chunk_concurrency": 3,
	"pipeline.pdf_text_cap":      25000,
	"pipeline.insert_batch_size": 500,
	"pipeline.raw_snippet_limit": 2000,
	"pipeline.default_currency":  "CNY",
	"pipeline.fallback_category": "其他",

	"jobs.max_file_bytes":  10 << 20,
	"jobs.retry_limit":     3,
	"jobs.queue_backend":   "memory",
	"jobs.queue_buffer":    100,
	"jobs.workers":         5,
	"jobs.redis_url":       "",
	"jobs.redis_queue_key": "smart-ledger:ingest",

	"reaper.retention_days": 7,
	"reaper.batch_size":     500,
	"reaper.schedule":       "@hourly",

	"database.driver": "sqlite",
	"database.dsn":    "file:smart-ledger.db?_foreign_keys=on",

	"storage.backend":          "db",
	"storage.bucket":           "",
	"storage.credentials_file": "",

	"ai.provider":     "siliconflow",
	"ai.api_key":      "",
	"ai.base_url":     "https://api.siliconflow.cn",
	"ai.model":        "Qwen/Qwen3-32B",
	"ai.gemini_model": "gemini-2.5-flash",
	"ai.temperature":  0.1,
	"ai.max_tokens":   16384,
	"ai.timeout":      "120s",

	"sinks.bigquery_project":   "",
	"sinks.bigquery_dataset":   "finance",
	"sinks.notion_token":       "",
	"sinks.notion_database_id": "",
}

// Environment variable names kept compatible with existing deployments.
var envBindings = map[string]string{
	"server.port":                "PORT",
	"server.log_level":           "LOG_LEVEL",
	"pipeline.chunk_concurrency": "EXCEL_CHUNK_CONCURRENCY",
	"jobs.queue_backend":         "QUEUE_BACKEND",
	"jobs.redis_url":             "REDIS_URL",
	"reaper.retention_days":      "IMPORT_JOB_REVIEW_RETENTION_DAYS",
	"database.driver":            "DATABASE_DRIVER",
	"database.dsn":               "DATABASE_URL",
	"storage.backend":            "STORAGE_BACKEND",
	"storage.bucket":             "GCS_BUCKET",
	"storage.credentials_file":   "GOOGLE_APPLICATION_CREDENTIALS",
	"ai.provider":                "AI_PROVIDER",
	"ai.api_key":                 "SILICONFLOW_API_KEY",
	"ai.base_url":                "SILICONFLOW_BASE_URL",
	"ai.model":                   "SILICONFLOW_MODEL",
	"ai.gemini_model":            "GEMINI_MODEL",
	"sinks.bigquery_project":     "BIGQUERY_PROJECT",
	"sinks.notion_token":         "NOTION_TOKEN",
	"sinks.notion_database_id":   "NOTION_DATABASE_ID",
}

// Default returns the built-in configuration without consulting the
// environment or any file.
func Default() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return fromViper(v)
}

// Load reads defaults, then the optional config file at path, then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, env := range envBindings {
		if err := v.BindEnv(k, env); err != nil {
			return nil, fmt.Errorf("Load: bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: Server{
			Port:     v.GetString("server.port"),
			LogLevel: v.GetString("server.log_level"),
			LogJSON:  v.GetBool("server.log_json"),
		},
		Pipeline: Pipeline{
			ChunkLines:       v.GetInt("pipeline.chunk_lines"),
			MinSignalLines:   v.GetInt("pipeline.min_signal_lines"),
			ChunkConcurrency: v.GetInt("pipeline.chunk_concurrency"),
			PDFTextCap:       v.GetInt("pipeline.pdf_text_cap"),
			InsertBatchSize:  v.GetInt("pipeline.insert_batch_size"),
			RawSnippetLimit:  v.GetInt("pipeline.raw_snippet_limit"),
			DefaultCurrency:  v.GetString("pipeline.default_currency"),
			FallbackCategory: v.GetString("pipeline.fallback_category"),
		},
		Jobs: Jobs{
			MaxFileBytes:  v.GetInt64("jobs.max_file_bytes"),
			RetryLimit:    v.GetInt("jobs.retry_limit"),
			QueueBackend:  v.GetString("jobs.queue_backend"),
			QueueBuffer:   v.GetInt("jobs.queue_buffer"),
			Workers:       v.GetInt("jobs.workers"),
			RedisURL:      v.GetString("jobs.redis_url"),
			RedisQueueKey: v.GetString("jobs.redis_queue_key"),
		},
		Reaper: Reaper{
			RetentionDays: v.GetInt("reaper.retention_days"),
			BatchSize:     v.GetInt("reaper.batch_size"),
			Schedule:      v.GetString("reaper.schedule"),
		},
		Database: Database{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Storage: Storage{
			Backend:         v.GetString("storage.backend"),
			Bucket:          v.GetString("storage.bucket"),
			CredentialsFile: v.GetString("storage.credentials_file"),
		},
		AI: AI{
			Provider:    v.GetString("ai.provider"),
			APIKey:      v.GetString("ai.api_key"),
			BaseURL:     v.GetString("ai.base_url"),
			Model:       v.GetString("ai.model"),
			GeminiModel: v.GetString("ai.gemini_model"),
			Temperature: v.GetFloat64("ai.temperature"),
			MaxTokens:   v.GetInt("ai.max_tokens"),
			Timeout:     v.GetDuration("ai.timeout"),
		},
		Sinks: Sinks{
			BigQueryProject:  v.GetString("sinks.bigquery_project"),
			BigQueryDataset:  v.GetString("sinks.bigquery_dataset"),
			NotionToken:      v.GetString("sinks.notion_token"),
			NotionDatabaseID: v.GetString("sinks.notion_database_id"),
		},
	}
}

// Validate checks that numeric settings are in range.
func (c *Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
	}{
		{c.Pipeline.ChunkLines >= 1, "pipeline.chunk_lines must be >= 1"},
		{c.Pipeline.MinSignalLines >= 0, "pipeline.min_signal_lines must be >= 0"},
		{c.Pipeline.ChunkConcurrency >= 1, "pipeline.chunk_concurrency must be >= 1"},
		{c.Pipeline.PDFTextCap >= 1, "pipeline.pdf_text_cap must be >= 1"},
		{c.Pipeline.InsertBatchSize >= 1 && c.Pipeline.InsertBatchSize <= 500, "pipeline.insert_batch_size must be in [1,500]"},
		{c.Jobs.MaxFileBytes >= 1, "jobs.max_file_bytes must be >= 1"},
		{c.Jobs.RetryLimit >= 0, "jobs.retry_limit must be >= 0"},
		{c.Jobs.Workers >= 1, "jobs.workers must be >= 1"},
		{c.Jobs.QueueBackend == "memory" || c.Jobs.QueueBackend == "redis", "jobs.queue_backend must be memory or redis"},
		{c.Reaper.RetentionDays >= 1, "reaper.retention_days must be >= 1"},
		{c.Reaper.BatchSize >= 1, "reaper.batch_size must be >= 1"},
		{c.Database.Driver == "postgres" || c.Database.Driver == "sqlite", "database.driver must be postgres or sqlite"},
		{c.Storage.Backend == "db" || c.Storage.Backend == "gcs", "storage.backend must be db or gcs"},
		{c.Storage.Backend != "gcs" || c.Storage.Bucket != "", "storage.bucket is required for gcs backend"},
		{c.Jobs.QueueBackend != "redis" || c.Jobs.RedisURL != "", "jobs.redis_url is required for redis backend"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.name)
		}
	}
	return nil
}

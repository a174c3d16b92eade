package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// TocConfig overrides contents page rendering defaults.
type TocConfig struct {
	Title string
	Links bool
}

// LimitsConfig bounds what a single request may ask for.
type LimitsConfig struct {
	MaxUploadMB      int64
	MaxDocuments     int
	ConcurrentMerges int
}

// ResultsConfig defines where merged outputs are kept.
type ResultsConfig struct {
	Dir        string
	S3Bucket   string
	Passphrase string // enables at-rest encryption of archived results when set
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Server   ServerConfig
	Toc      TocConfig
	Limits   LimitsConfig
	Results  ResultsConfig
	RedisURL string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfbinder.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfbinder",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.Toc = TocConfig{
		Title: getEnv("TOC_TITLE", "Table of Contents"),
		Links: parseBool(getEnv("TOC_LINKS", "true")),
	}

	cfg.Limits = LimitsConfig{
		MaxUploadMB:      int64(parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64)),
		MaxDocuments:     parseInt(getEnv("MAX_DOCUMENTS", "36"), 36),
		ConcurrentMerges: parseInt(getEnv("MAX_CONCURRENT_MERGES", "4"), 4),
	}

	cfg.Results = ResultsConfig{
		Dir:        getEnv("RESULT_DIR", "uploads/results"),
		S3Bucket:   getEnv("AWS_S3_BUCKET", ""),
		Passphrase: getEnv("RESULT_PASSPHRASE", ""),
	}

	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379")

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// File storage.
	DataDir        string
	MaxUploadBytes int64

	// Invoice generation.
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	GenerateTimeout time.Duration

	// Voice transcription.
	SpeechmaticsAPIKey  string
	SpeechmaticsBaseURL string
	TranscribeTimeout   time.Duration
	TranscribePollMax   int

	// Retrieval context.
	RAGMaxDocs      int
	ChunkSize       int
	ChunkOverlap    int
	DefaultCurrency string

	// Caching and rate limiting.
	CatalogCacheTTL   time.Duration
	IdempotencyTTL    time.Duration
	GenerateRateMax   int
	GenerateRateWin   time.Duration
	TranscribeRateMax int
	TranscribeRateWin time.Duration

	// Outbound resilience.
	OutboundTimeout    time.Duration
	RetryBase          time.Duration
	RetryMaxAttempts   int
	RetryJitterPercent float64
	CircuitMinReq      int
	CircuitFailureRate float64
	CircuitOpenFor     time.Duration

	// Background indexing.
	IndexOnExport   bool
	WorkerQueueName string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DataDir:        valueOrDefault(k.String("DATA_DIR"), "./data"),
		MaxUploadBytes: int64(intOrDefault(k.Int("MAX_UPLOAD_MB"), 20)) << 20,

		OpenAIAPIKey:    k.String("OPENAI_API_KEY"),
		OpenAIBaseURL:   valueOrDefault(k.String("OPENAI_BASE_URL"), "https://api.openai.com/v1"),
		OpenAIModel:     valueOrDefault(k.String("OPENAI_MODEL"), "gpt-4o-mini"),
		GenerateTimeout: parseDuration(k.String("GENERATE_TIMEOUT"), "60s"),

		SpeechmaticsAPIKey:  k.String("SPEECHMATICS_API_KEY"),
		SpeechmaticsBaseURL: valueOrDefault(k.String("SPEECHMATICS_BASE_URL"), "https://asr.api.speechmatics.com/v2"),
		TranscribeTimeout:   parseDuration(k.String("TRANSCRIBE_TIMEOUT"), "120s"),
		TranscribePollMax:   intOrDefault(k.Int("TRANSCRIBE_POLL_MAX"), 90),

		RAGMaxDocs:      intOrDefault(k.Int("RAG_MAX_DOCS"), 3),
		ChunkSize:       intOrDefault(k.Int("RAG_CHUNK_SIZE"), 2000),
		ChunkOverlap:    intOrDefault(k.Int("RAG_CHUNK_OVERLAP"), 200),
		DefaultCurrency: valueOrDefault(k.String("DEFAULT_CURRENCY"), "USD"),

		CatalogCacheTTL:   parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		GenerateRateMax:   intOrDefault(k.Int("GENERATE_RATE_MAX"), 10),
		GenerateRateWin:   parseDuration(k.String("GENERATE_RATE_WINDOW"), "1m"),
		TranscribeRateMax: intOrDefault(k.Int("TRANSCRIBE_RATE_MAX"), 20),
		TranscribeRateWin: parseDuration(k.String("TRANSCRIBE_RATE_WINDOW"), "1m"),

		OutboundTimeout:    parseDuration(k.String("OUTBOUND_TIMEOUT"), "30s"),
		RetryBase:          parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:   intOrDefault(k.Int("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent: floatOrDefault(k.Float64("RETRY_JITTER_PERCENT"), 0.2),
		CircuitMinReq:      intOrDefault(k.Int("CIRCUIT_MIN_REQUESTS"), 5),
		CircuitFailureRate: floatOrDefault(k.Float64("CIRCUIT_FAILURE_RATE"), 0.5),
		CircuitOpenFor:     parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		IndexOnExport:   parseBool(k.String("INDEX_ON_EXPORT")),
		WorkerQueueName: valueOrDefault(k.String("WORKER_QUEUE"), "default"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// InvoicesDir returns the directory where exported and uploaded PDFs live.
func (c *Config) InvoicesDir() string {
	return filepath.Join(c.DataDir, "invoices")
}

// TranscribePollWindow is how long a transcription job may stay in flight
// before polling gives up with a timeout.
func (c *Config) TranscribePollWindow() time.Duration {
	return time.Duration(c.TranscribePollMax) * time.Second
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func floatOrDefault(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and validates them before any component is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session backends.
const (
	SessionBackendSQLite = "sqlite"
	SessionBackendRedis  = "redis"
	SessionBackendMemory = "memory"
)

var validProviders = []string{"gemini", "groq", "cerebras"}

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Optional rotating log file (empty = stdout only)
	LogFile           string
	LogFileMaxSizeMB  int
	LogFileMaxBackups int
	LogFileMaxAgeDays int

	// Data Configuration
	DataDir            string
	ChatHistoryFile    string   // JSON transcript file (default: <DataDir>/chat_history.json)
	KeywordDir         string   // Directory holding the three keyword CSVs
	CorpusDir          string   // Directory of DSM-5 reference documents
	CorpusURLs         []string // Extra reference pages fetched at startup
	EmotionLexiconFile string   // Optional YAML override for emotion keywords and weights

	// Engine policy
	RequirePersonalKeyword bool // EmotionalDisclosure needs personal AND emotion keywords
	LabeledQuizOptions     bool // "1 - Không bao giờ" instead of "Không bao giờ"

	// Retrieval
	RetrievalTopK int
	ChunkSize     int
	ChunkOverlap  int

	// Sessions
	SessionBackend string
	RedisURL       string
	SessionTTL     time.Duration

	// LINE Channel (optional, webhook is disabled when empty)
	LineChannelToken  string
	LineChannelSecret string

	// LLM Configuration
	LLMProviders   []string // Ordered provider chain, e.g. ["groq", "gemini"]
	GeminiAPIKey   string
	GroqAPIKey     string
	CerebrasAPIKey string
	GeminiModel    string // empty = genai default
	GroqModel      string
	CerebrasModel  string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	// R2 history backup (optional)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2HistoryKey      string
	R2BackupInterval  time.Duration

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = no auth

	// Error tracking (Better Stack Errors, Sentry-compatible)
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Remote logs
	BetterStackToken    string
	BetterStackEndpoint string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// Mode selects which settings Validate requires.
type Mode int

const (
	// ServerMode requires everything the chatbot needs to answer users.
	ServerMode Mode = iota
	// IngestMode only needs storage and corpus settings; LLM keys are optional.
	IngestMode
)

// Load reads configuration for the server.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func LoadForMode(mode Mode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	dataDir := getEnv(EnvDataDir, getDefaultDataDir())

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),

		LogFile:           getEnv(EnvLogFile, ""),
		LogFileMaxSizeMB:  getIntEnv(EnvLogFileMaxSize, 50),
		LogFileMaxBackups: getIntEnv(EnvLogFileBackups, 5),
		LogFileMaxAgeDays: getIntEnv(EnvLogFileMaxAge, 14),

		DataDir:            dataDir,
		ChatHistoryFile:    getEnv(EnvChatHistoryFile, filepath.Join(dataDir, "chat_history.json")),
		KeywordDir:         getEnv(EnvKeywordDir, filepath.Join(dataDir, "keywords")),
		CorpusDir:          getEnv(EnvCorpusDir, filepath.Join(dataDir, "corpus")),
		CorpusURLs:         getListEnv(EnvCorpusURLs, nil),
		EmotionLexiconFile: getEnv(EnvEmotionLexicon, ""),

		RequirePersonalKeyword: getBoolEnv(EnvRequirePersonal, true),
		LabeledQuizOptions:     getBoolEnv(EnvLabeledOptions, true),

		RetrievalTopK: getIntEnv(EnvRetrievalTopK, 3),
		ChunkSize:     getIntEnv(EnvChunkSize, 512),
		ChunkOverlap:  getIntEnv(EnvChunkOverlap, 50),

		SessionBackend: strings.ToLower(getEnv(EnvSessionBackend, SessionBackendSQLite)),
		RedisURL:       getEnv(EnvRedisURL, ""),
		SessionTTL:     getDurationEnv(EnvSessionTTL, 7*24*time.Hour),

		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),

		LLMProviders:   lower(getListEnv(EnvLLMProviders, []string{"groq", "gemini", "cerebras"})),
		GeminiAPIKey:   getEnv(EnvGeminiAPIKey, ""),
		GroqAPIKey:     getEnv(EnvGroqAPIKey, ""),
		CerebrasAPIKey: getEnv(EnvCerebrasAPIKey, ""),
		GeminiModel:    getEnv(EnvGeminiModel, ""),
		GroqModel:      getEnv(EnvGroqModel, ""),
		CerebrasModel:  getEnv(EnvCerebrasModel, ""),
		LLMTemperature: getFloatEnv(EnvLLMTemperature, 0.01),
		LLMMaxTokens:   getIntEnv(EnvLLMMaxTokens, 512),
		LLMTimeout:     getDurationEnv(EnvLLMTimeout, LLMRequest),

		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),
		R2HistoryKey:      getEnv(EnvR2HistoryKey, "history/chat_history.json.zst"),
		R2BackupInterval:  getDurationEnv(EnvR2BackupInterval, time.Hour),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		Bot: LoadBotConfig(),
	}

	if err := cfg.validate(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	return c.validate(ServerMode)
}

func (c *Config) validate(mode Mode) error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.ChatHistoryFile == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvChatHistoryFile))
	}

	if c.RetrievalTopK <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvRetrievalTopK, c.RetrievalTopK))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvChunkSize, c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("%s must be in [0, %d), got %d", EnvChunkOverlap, c.ChunkSize, c.ChunkOverlap))
	}

	switch c.SessionBackend {
	case SessionBackendSQLite, SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s=redis", EnvRedisURL, EnvSessionBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be one of sqlite, redis, memory, got %q", EnvSessionBackend, c.SessionBackend))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionTTL, c.SessionTTL))
	}

	if (c.LineChannelToken == "") != (c.LineChannelSecret == "") {
		errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvLineChannelAccessToken, EnvLineChannelSecret))
	}

	for _, p := range c.LLMProviders {
		if !slices.Contains(validProviders, p) {
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", EnvLLMProviders, p))
		}
	}
	if mode == ServerMode && !c.HasLLMProvider() {
		errs = append(errs, fmt.Errorf("at least one of %s, %s, %s is required", EnvGroqAPIKey, EnvGeminiAPIKey, EnvCerebrasAPIKey))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("%s must be in [0, 2], got %v", EnvLLMTemperature, c.LLMTemperature))
	}
	if c.LLMMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvLLMMaxTokens, c.LLMMaxTokens))
	}

	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be in [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if c.R2Enabled() && c.R2BackupInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvR2BackupInterval, c.R2BackupInterval))
	}

	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blanks.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func lower(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(s)
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "tamly.db")
}

// HasLLMProvider reports whether any provider in the chain has an API key.
func (c *Config) HasLLMProvider() bool {
	for _, p := range c.LLMProviders {
		if c.ProviderAPIKey(p) != "" {
			return true
		}
	}
	return false
}

// ProviderAPIKey returns the API key configured for provider.
func (c *Config) ProviderAPIKey(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "groq":
		return c.GroqAPIKey
	case "cerebras":
		return c.CerebrasAPIKey
	}
	return ""
}

// ProviderModel returns the model override for provider (empty = default).
func (c *Config) ProviderModel(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiModel
	case "groq":
		return c.GroqModel
	case "cerebras":
		return c.CerebrasModel
	}
	return ""
}

// LineEnabled reports whether the LINE webhook should be mounted.
func (c *Config) LineEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// R2Enabled reports whether history backup to R2 is fully configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// R2Endpoint returns the S3-compatible endpoint for the configured account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// SentryEnabled reports whether error tracking is configured.
func (c *Config) SentryEnabled() bool {
	return c.SentryToken != "" && c.SentryHost != ""
}

// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "TAMLY_PORT"
	EnvLogLevel        = "TAMLY_LOG_LEVEL"
	EnvShutdownTimeout = "TAMLY_SHUTDOWN_TIMEOUT"
	EnvLogFile         = "TAMLY_LOG_FILE"
	EnvLogFileMaxSize  = "TAMLY_LOG_FILE_MAX_SIZE_MB"
	EnvLogFileBackups  = "TAMLY_LOG_FILE_MAX_BACKUPS"
	EnvLogFileMaxAge   = "TAMLY_LOG_FILE_MAX_AGE_DAYS"

	// Data
	EnvDataDir         = "TAMLY_DATA_DIR"
	EnvChatHistoryFile = "TAMLY_CHAT_HISTORY_FILE"
	EnvKeywordDir      = "TAMLY_KEYWORD_DIR"
	EnvCorpusDir       = "TAMLY_CORPUS_DIR"
	EnvCorpusURLs      = "TAMLY_CORPUS_URLS"
	EnvEmotionLexicon  = "TAMLY_EMOTION_LEXICON"

	// Engine policy
	EnvRequirePersonal = "TAMLY_REQUIRE_PERSONAL"
	EnvLabeledOptions  = "TAMLY_LABELED_OPTIONS"

	// Retrieval
	EnvRetrievalTopK = "TAMLY_RETRIEVAL_TOP_K"
	EnvChunkSize     = "TAMLY_CHUNK_SIZE"
	EnvChunkOverlap  = "TAMLY_CHUNK_OVERLAP"

	// Sessions
	EnvSessionBackend = "TAMLY_SESSION_BACKEND"
	EnvRedisURL       = "TAMLY_REDIS_URL"
	EnvSessionTTL     = "TAMLY_SESSION_TTL"

	// LINE channel (optional)
	EnvLineChannelAccessToken = "TAMLY_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "TAMLY_LINE_CHANNEL_SECRET"
	EnvWebhookTimeout         = "TAMLY_WEBHOOK_TIMEOUT"
	EnvLineSenderName         = "TAMLY_LINE_SENDER_NAME"
	EnvLineSenderIcon         = "TAMLY_LINE_SENDER_ICON_URL"

	// Rate Limits
	EnvUserRateBurst  = "TAMLY_USER_RATE_BURST"
	EnvUserRateRefill = "TAMLY_USER_RATE_REFILL"
	EnvLLMRateBurst   = "TAMLY_LLM_RATE_BURST"
	EnvLLMRateRefill  = "TAMLY_LLM_RATE_REFILL"
	EnvLLMRateDaily   = "TAMLY_LLM_RATE_DAILY"
	EnvAPIRateBurst   = "TAMLY_API_RATE_BURST"
	EnvAPIRateRefill  = "TAMLY_API_RATE_REFILL"

	// LLM
	EnvLLMProviders   = "TAMLY_LLM_PROVIDERS"
	EnvGeminiAPIKey   = "TAMLY_GEMINI_API_KEY"
	EnvGroqAPIKey     = "TAMLY_GROQ_API_KEY"
	EnvCerebrasAPIKey = "TAMLY_CEREBRAS_API_KEY"
	EnvGeminiModel    = "TAMLY_GEMINI_MODEL"
	EnvGroqModel      = "TAMLY_GROQ_MODEL"
	EnvCerebrasModel  = "TAMLY_CEREBRAS_MODEL"
	EnvLLMTemperature = "TAMLY_LLM_TEMPERATURE"
	EnvLLMMaxTokens   = "TAMLY_LLM_MAX_TOKENS"
	EnvLLMTimeout     = "TAMLY_LLM_TIMEOUT"

	// R2 history backup (optional)
	EnvR2AccountID       = "TAMLY_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "TAMLY_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "TAMLY_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "TAMLY_R2_BUCKET_NAME"
	EnvR2HistoryKey      = "TAMLY_R2_HISTORY_KEY"
	EnvR2BackupInterval  = "TAMLY_R2_BACKUP_INTERVAL"

	// Observability
	EnvMetricsUsername     = "TAMLY_METRICS_USERNAME"
	EnvMetricsPassword     = "TAMLY_METRICS_PASSWORD"
	EnvSentryToken         = "TAMLY_SENTRY_TOKEN"
	EnvSentryHost          = "TAMLY_SENTRY_HOST"
	EnvSentryEnvironment   = "TAMLY_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate    = "TAMLY_SENTRY_SAMPLE_RATE"
	EnvBetterStackToken    = "TAMLY_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "TAMLY_BETTERSTACK_ENDPOINT"
)

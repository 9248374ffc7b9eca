package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	VerifierModeMultiBackend = "multi_backend"
	VerifierModePersona      = "persona"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	CORSAllowOrigin []string
	JWTSecret       string

	DatabaseURL string
	RedisURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	UploadsBucket   string
	UploadsPrefix   string
	QueueURL        string

	SearchProvider    string
	SearchAPIKey      string
	SearchResultLimit int
	SearchCacheTTL    time.Duration

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OCRModel        string
	ExtractModel    string
	ChatModel       string
	ModelRosterFile string
	VerifierMode    string
	CredibilityFile string

	JobTimeout         time.Duration
	ModelCallTimeout   time.Duration
	ModelRateLimitRPS  float64
	ModelRetryAttempts int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:8081")),
		JWTSecret:       os.Getenv("JWT_SECRET"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		UploadsBucket:   getEnv("UPLOADS_S3_BUCKET", ""),
		UploadsPrefix:   getEnv("UPLOADS_S3_PREFIX", "screenshots/"),
		QueueURL:        getEnv("RA_SQS_QUEUE_URL", ""),

		SearchProvider:    strings.ToLower(getEnv("SEARCH_PROVIDER", "brave")),
		SearchAPIKey:      os.Getenv("SEARCH_API_KEY"),
		SearchResultLimit: getEnvInt("SEARCH_RESULT_LIMIT", 10),
		SearchCacheTTL:    getEnvDuration("SEARCH_CACHE_TTL", 6*time.Hour),

		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OCRModel:        getEnv("OCR_MODEL", "gpt-4o"),
		ExtractModel:    getEnv("EXTRACT_MODEL", "gpt-4o-mini"),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		ModelRosterFile: os.Getenv("MODEL_ROSTER_FILE"),
		VerifierMode:    normalizeVerifierMode(getEnv("VERIFIER_MODE", VerifierModeMultiBackend)),
		CredibilityFile: os.Getenv("CREDIBILITY_FILE"),

		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 45*time.Second),
		ModelCallTimeout:   getEnvDuration("MODEL_CALL_TIMEOUT", 20*time.Second),
		ModelRateLimitRPS:  getEnvFloat("MODEL_RATE_LIMIT_RPS", 5),
		ModelRetryAttempts: getEnvInt("MODEL_RETRY_ATTEMPTS", 3),
	}
}

// IsDevLike reports whether the environment tolerates in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// getEnvDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeVerifierMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case VerifierModePersona, "simulated":
		return VerifierModePersona
	default:
		return VerifierModeMultiBackend
	}
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	LLMTimeout      time.Duration

	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	BackoffBase  float64

	HistoryFile string
	DatabaseURL string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	RateLimitRPS    float64
	RateLimitBurst  int
	ReviewCacheSize int

	InnovationWeight float64
	EthicsWeight     float64
	SecurityWeight   float64
	VetoCap          float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", ".env.local", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is empty in production; history falls back to the JSON file store")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),

		LLMProvider:     normalizeProvider(getEnv("LLM_PROVIDER", "stub")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4-turbo"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,

		MaxRetries:   getEnvInt("LLM_MAX_RETRIES", 3),
		InitialDelay: time.Duration(getEnvInt("LLM_INITIAL_DELAY_MS", 1000)) * time.Millisecond,
		MaxDelay:     time.Duration(getEnvInt("LLM_MAX_DELAY_MS", 60000)) * time.Millisecond,
		BackoffBase:  getEnvFloat("LLM_BACKOFF_BASE", 2.0),

		HistoryFile: getEnv("HISTORY_FILE", "review_history.json"),
		DatabaseURL: dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "off")),
		LocalStoreDir:   getEnv("OBJECT_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("REPORTS_S3_BUCKET", ""),
		S3Prefix:        getEnv("REPORTS_S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 0),
		ReviewCacheSize: getEnvInt("REVIEW_CACHE_SIZE", 128),

		InnovationWeight: getEnvFloat("SYNTHESIS_INNOVATION_WEIGHT", 0.30),
		EthicsWeight:     getEnvFloat("SYNTHESIS_ETHICS_WEIGHT", 0.40),
		SecurityWeight:   getEnvFloat("SYNTHESIS_SECURITY_WEIGHT", 0.30),
		VetoCap:          getEnvFloat("SYNTHESIS_VETO_CAP", 3.0),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set in the environment.
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: load %s: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: %s invalid float %q, using %v", key, raw, def)
		return def
	}
	return val
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
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "anthropic":
		return "anthropic"
	case "gemini":
		return "gemini"
	default:
		return "stub"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "local":
		return "local"
	default:
		return "off"
	}
}

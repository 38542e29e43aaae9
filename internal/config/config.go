package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Funnel    FunnelConfig
	Agent     AgentConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	CatalogURL   string
}

type AIConfig struct {
	LLMProvider   string // "ollama" or "gemini"
	LLMModel      string // cheap default, e.g. "llama3"
	PremiumModel  string // escalation target, e.g. "qwen2.5:32b"
	OllamaBaseURL string
	// Routing thresholds, reloadable at runtime through the ops surface.
	LongMessageChars  int
	ShortMessageChars int
}

// FailMode decides what a credential class does when the rate limit
// store is unreachable.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// CredentialClass is one admission policy: a sliding window plus a
// geometric block schedule for repeat offenders.
type CredentialClass struct {
	Window       time.Duration
	MaxRequests  int
	BaseBlock    time.Duration
	MaxBlock     time.Duration
	ViolationCap int
	FailMode     FailMode
}

type RateLimitConfig struct {
	Classes map[string]CredentialClass
}

type CacheConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

type FunnelConfig struct {
	// Idle timeout per stage before the session is walked back to its
	// recovery stage.
	StageTimeouts map[string]time.Duration
	SweepInterval time.Duration
	SessionTTL    time.Duration
}

type AgentConfig struct {
	MaxSteps       int
	StepRetries    int
	PlanBudget     time.Duration
	DefaultTimeout time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			CatalogURL:   getEnv("CATALOG_BASE_URL", "http://localhost:8081"),
		},
		Ai: AIConfig{
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			PremiumModel:      getEnv("LLM_PREMIUM_MODEL", "qwen2.5:32b"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LongMessageChars:  getEnvAsInt("ROUTER_LONG_MESSAGE_CHARS", 400),
			ShortMessageChars: getEnvAsInt("ROUTER_SHORT_MESSAGE_CHARS", 80),
		},
		RateLimit: RateLimitConfig{
			Classes: map[string]CredentialClass{
				"chat": {
					Window:       getEnvAsDuration("RATELIMIT_CHAT_WINDOW", time.Minute),
					MaxRequests:  getEnvAsInt("RATELIMIT_CHAT_MAX_REQUESTS", 30),
					BaseBlock:    getEnvAsDuration("RATELIMIT_CHAT_BASE_BLOCK", time.Minute),
					MaxBlock:     getEnvAsDuration("RATELIMIT_CHAT_MAX_BLOCK", time.Hour),
					ViolationCap: getEnvAsInt("RATELIMIT_CHAT_VIOLATION_CAP", 6),
					FailMode:     FailMode(getEnv("RATELIMIT_CHAT_FAIL_MODE", string(FailOpen))),
				},
				"otp": {
					Window:       getEnvAsDuration("RATELIMIT_OTP_WINDOW", 10*time.Minute),
					MaxRequests:  getEnvAsInt("RATELIMIT_OTP_MAX_REQUESTS", 5),
					BaseBlock:    getEnvAsDuration("RATELIMIT_OTP_BASE_BLOCK", 5*time.Minute),
					MaxBlock:     getEnvAsDuration("RATELIMIT_OTP_MAX_BLOCK", 24*time.Hour),
					ViolationCap: getEnvAsInt("RATELIMIT_OTP_VIOLATION_CAP", 8),
					FailMode:     FailMode(getEnv("RATELIMIT_OTP_FAIL_MODE", string(FailClosed))),
				},
			},
		},
		Cache: CacheConfig{
			DefaultTTL:    getEnvAsDuration("CACHE_DEFAULT_TTL", 15*time.Minute),
			SweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		},
		Funnel: FunnelConfig{
			StageTimeouts: map[string]time.Duration{
				"greeting":       getEnvAsDuration("FUNNEL_GREETING_TIMEOUT", 10*time.Minute),
				"discovery":      getEnvAsDuration("FUNNEL_DISCOVERY_TIMEOUT", 30*time.Minute),
				"recommendation": getEnvAsDuration("FUNNEL_RECOMMENDATION_TIMEOUT", 30*time.Minute),
				"consideration":  getEnvAsDuration("FUNNEL_CONSIDERATION_TIMEOUT", 45*time.Minute),
				"cart":           getEnvAsDuration("FUNNEL_CART_TIMEOUT", time.Hour),
				"checkout":       getEnvAsDuration("FUNNEL_CHECKOUT_TIMEOUT", 30*time.Minute),
			},
			SweepInterval: getEnvAsDuration("FUNNEL_SWEEP_INTERVAL", time.Minute),
			SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		},
		Agent: AgentConfig{
			MaxSteps:       getEnvAsInt("AGENT_MAX_STEPS", 5),
			StepRetries:    getEnvAsInt("AGENT_STEP_RETRIES", 1),
			PlanBudget:     getEnvAsDuration("AGENT_PLAN_BUDGET", 45*time.Second),
			DefaultTimeout: getEnvAsDuration("AGENT_STEP_TIMEOUT", 15*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

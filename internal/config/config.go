package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Session    SessionConfig
	Classifier ClassifierConfig
	Ai         AIConfig
	Escalation EscalationConfig
}

type AppConfig struct {
	Port                string
	Environment         string
	LogFilePath         string
	PublishLogFilePath  string
	CorsAllowedOrigins  string
	JwtSecret           string // empty = trust X-User-Id from the upstream auth layer
	OtelEnabled         bool
	NatsURL             string // empty = in-process ticket sink
	RedisURL            string
	TicketStream        string
	TicketSubjectPrefix string
}

type DatabaseConfig struct {
	Connection string
	Timeout    time.Duration
}

type SessionConfig struct {
	Backend            string // "redis" | "memory"
	TTL                time.Duration
	HistoryTTL         time.Duration
	HistoryMaxMessages int
	StoreTimeout       time.Duration
}

type ClassifierConfig struct {
	URL       string
	APIKey    string
	Threshold float64
	Timeout   time.Duration
}

type AIConfig struct {
	LLMProvider  string // "openai" | "ollama"
	LLMModel     string
	LLMBaseURL   string
	OpenAIAPIKey string
	Temperature  float64
	Timeout      time.Duration
}

type EscalationConfig struct {
	Cooldown          time.Duration
	StrictDedupe      bool
	PublishWorkers    int
	PublishQueueSize  int
	PublishTimeout    time.Duration
	PublishMaxAttempt int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			PublishLogFilePath:  getEnv("PUBLISH_LOG_FILE_PATH", "logs/escalation_publish.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			JwtSecret:           getEnv("JWT_SECRET", ""),
			OtelEnabled:         getEnvAsBool("OTEL_ENABLED", false),
			NatsURL:             getEnv("NATS_URL", ""),
			RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
			TicketStream:        getEnv("TICKET_STREAM", "SUPPORT_TICKETS"),
			TicketSubjectPrefix: getEnv("TICKET_SUBJECT_PREFIX", "support.tickets"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			Timeout:    getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		},
		Session: SessionConfig{
			Backend:            getEnv("SESSION_BACKEND", "redis"),
			TTL:                getEnvAsDuration("SESSION_TTL", 10*time.Minute),
			HistoryTTL:         getEnvAsDuration("HISTORY_TTL", 10*time.Minute),
			HistoryMaxMessages: getEnvAsInt("HISTORY_MAX_MESSAGES", 50),
			StoreTimeout:       getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		},
		Classifier: ClassifierConfig{
			URL:       getEnv("CLASSIFIER_URL", "http://localhost:8001/classify"),
			APIKey:    getEnv("CLASSIFIER_API_KEY", ""),
			Threshold: getEnvAsFloat("CLASSIFIER_THRESHOLD", 0.7),
			Timeout:   getEnvAsDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		},
		Ai: AIConfig{
			LLMProvider:  getEnv("LLM_PROVIDER", "openai"),
			LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
			LLMBaseURL:   getEnv("LLM_BASE_URL", ""),
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			Temperature:  getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Escalation: EscalationConfig{
			Cooldown:          getEnvAsDuration("ESCALATION_COOLDOWN", 5*time.Minute),
			StrictDedupe:      getEnvAsBool("ESCALATION_STRICT_DEDUPE", false),
			PublishWorkers:    getEnvAsInt("PUBLISH_WORKERS", 4),
			PublishQueueSize:  getEnvAsInt("PUBLISH_QUEUE_SIZE", 256),
			PublishTimeout:    getEnvAsDuration("PUBLISH_TIMEOUT", 5*time.Second),
			PublishMaxAttempt: getEnvAsInt("PUBLISH_MAX_ATTEMPTS", 5),
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

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

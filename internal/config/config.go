package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Keys     APIKeys
	Ai       AIConfig
	Funnel   FunnelConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
	SalesInbox string // Receives lead notifications
}

type APIKeys struct {
	OpenAI          string
	EnrichmentToken string
	EnrichmentTopic string // Watermill topic for enrichment jobs
}

type AIConfig struct {
	LLMProvider   string // "openai" or "ollama"
	LLMModel      string // e.g. "gpt-4o-mini", "llama3.1"
	OpenAIBaseURL string
	OllamaBaseURL string
	Temperature   float64
	MaxTokens     int
	MaxToolRounds int
	HistoryLimit  int
	TokenBudget   int
}

type FunnelConfig struct {
	TotalSteps           int
	PersistDebounce      time.Duration
	LookupDebounce       time.Duration
	VisitorTTL           time.Duration
	EnrichmentWebhookURL string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Secretária IA"),
			SalesInbox: getEnv("SALES_NOTIFY_EMAIL", ""),
		},
		Keys: APIKeys{
			OpenAI:          getEnv("OPENAI_API_KEY", ""),
			EnrichmentToken: getEnv("ENRICHMENT_WEBHOOK_TOKEN", ""),
			EnrichmentTopic: getEnv("ENRICHMENT_TOPIC_NAME", "ENRICH_PROFILE"),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
			LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 500),
			MaxToolRounds: getEnvAsInt("LLM_MAX_TOOL_ROUNDS", 3),
			HistoryLimit:  getEnvAsInt("LLM_HISTORY_LIMIT", 20),
			TokenBudget:   getEnvAsInt("LLM_HISTORY_TOKEN_BUDGET", 3000),
		},
		Funnel: FunnelConfig{
			TotalSteps:           getEnvAsInt("FUNNEL_TOTAL_STEPS", 16),
			PersistDebounce:      getEnvAsDuration("PERSIST_DEBOUNCE_MS", 1000*time.Millisecond),
			LookupDebounce:       getEnvAsDuration("LOOKUP_DEBOUNCE_MS", 1500*time.Millisecond),
			VisitorTTL:           getEnvAsDuration("VISITOR_TTL_MS", 2*time.Hour),
			EnrichmentWebhookURL: getEnv("ENRICHMENT_WEBHOOK_URL", ""),
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

// getEnvAsDuration reads a millisecond count.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil && value >= 0 {
		return time.Duration(value) * time.Millisecond
	}
	return fallback
}

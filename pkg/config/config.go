package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends supported by the processor
const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	// Bearer token for the ops settings routes; empty disables them
	OpsAPIToken string

	// Pub/Sub
	GoogleProjectID     string
	GooglePubSubTopic   string
	GmailSubscriptionID string
	GoogleCredentials   string // service account credentials file

	// OAuth client used to refresh user tokens
	GoogleClientID     string
	GoogleClientSecret string

	// Storage
	StorageBackend string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string

	// AI providers
	DefaultAIProvider string
	GeminiAPIKey      string
	GeminiModel       string
	OllamaBaseURL     string
	OllamaModel       string
	OpenAIAPIKey      string
	OpenAIModel       string

	// Processing
	ContextAwarePrompt  string // overrides the built-in default template
	RecentIDCapacity    int
	DefaultContextDepth int
	EventWorkers        int
	EventQueueSize      int
	ShutdownTimeout     time.Duration

	FirebaseCredentials string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	shutdownTimeout := 30 * time.Second
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			shutdownTimeout = parsed
		}
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		OpsAPIToken: os.Getenv("OPS_API_TOKEN"),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GmailSubscriptionID: getEnv("GMAIL_SUBSCRIPTION_ID", "gmail-events-sub"),
		GoogleCredentials:   getEnv("GOOGLE_CREDENTIALS", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StoragePostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=mail_events port=5432 sslmode=disable"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGO_DATABASE", "mail_ai"),

		DefaultAIProvider: strings.ToLower(getEnv("DEFAULT_AI_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		ContextAwarePrompt:  os.Getenv("CONTEXT_AWARE_PROMPT"),
		RecentIDCapacity:    getEnvInt("RECENT_ID_CAPACITY", 1000),
		DefaultContextDepth: getEnvInt("DEFAULT_CONTEXT_DEPTH", 10),
		EventWorkers:        getEnvInt("EVENT_WORKERS", 4),
		EventQueueSize:      getEnvInt("EVENT_QUEUE_SIZE", 500),
		ShutdownTimeout:     shutdownTimeout,

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
	}
}

// Validate reports settings the processor cannot start without.
func (c *Config) Validate() error {
	if c.GoogleProjectID == "" {
		return errors.New("GOOGLE_PROJECT_ID is required")
	}
	switch c.StorageBackend {
	case StoragePostgres, StorageMongo:
	default:
		return errors.New("STORAGE_BACKEND must be postgres or mongo")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

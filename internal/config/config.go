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
	Keys     APIKeys
	Ai       AIConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	Jina         string
	HuggingFace  string
}

type AIConfig struct {
	EmbeddingProvider  string // "gemini", "ollama" or "jina"
	EmbeddingModel     string
	EmbeddingDimension int
	LLMProvider        string // "gemini", "ollama" or "huggingface"
	LLMModel           string
	OllamaBaseURL      string
	HuggingFaceBaseURL string
}

// EngineConfig holds the ingestion and retrieval knobs.
type EngineConfig struct {
	ChunkSize            int
	ChunkOverlap         int
	RetrievalK           int
	HistoryWindow        int
	IdleTimeoutSeconds   int
	MaxUploadBytes       int64
	EmbedConcurrency     int
	EmbedCacheTTLSeconds int
}

func (e EngineConfig) IdleTimeout() time.Duration {
	return time.Duration(e.IdleTimeoutSeconds) * time.Second
}

func (e EngineConfig) EmbedCacheTTL() time.Duration {
	return time.Duration(e.EmbedCacheTTLSeconds) * time.Second
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "gemini"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
			LLMProvider:        getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:           getEnv("LLM_MODEL", ""),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", ""),
		},
		Engine: EngineConfig{
			ChunkSize:            getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:         getEnvAsInt("CHUNK_OVERLAP", 200),
			RetrievalK:           getEnvAsInt("RETRIEVAL_K", 10),
			HistoryWindow:        getEnvAsInt("HISTORY_WINDOW", 6),
			IdleTimeoutSeconds:   getEnvAsInt("IDLE_TIMEOUT_SECONDS", 300),
			MaxUploadBytes:       getEnvAsInt64("MAX_UPLOAD_BYTES", 30*1024*1024),
			EmbedConcurrency:     getEnvAsInt("EMBED_CONCURRENCY", 4),
			EmbedCacheTTLSeconds: getEnvAsInt("EMBED_CACHE_TTL_SECONDS", 86400),
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

func getEnvAsInt64(key string, fallback int64) int64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseInt(strValue, 10, 64); err == nil {
		return value
	}
	return fallback
}

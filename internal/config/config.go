package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	JWTSecret    string
	JWTExpiresIn string
	BcryptCost   int

	// Gemini configuration
	GeminiAPIKey    string
	ChatModel       string
	RewriteModel    string
	EmbeddingsModel string
	GeminiTier      string

	// Qdrant vector store
	QdrantURL    string
	QdrantAPIKey string

	// Chunking and retrieval
	MaxChunkSize int
	ChunkOverlap int
	TopK         int
	HyDeEnabled  bool

	// Upload handling
	MaxFileSize         int64
	AllowedTypes        []string
	FileStorageDir      string
	SyncProcessingLimit int64

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Ingestion retry sweep
	RetrySweepMinutes int

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/document_rag"),
		DBName:       getEnv("DB_NAME", "document_rag"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getEnv("JWT_EXPIRES_IN", "24h"),
		BcryptCost:   getEnvInt("BCRYPT_COST", 12),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ChatModel:       getEnv("MODEL_FOR_CHAT", "gemini-2.5-flash"),
		RewriteModel:    getEnv("MODEL_FOR_QUERY_REWRITE", "gemini-2.5-flash-lite"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		QdrantURL:    getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		TopK:         getEnvInt("TOP_K", 5),
		HyDeEnabled:  getEnvBool("HYDE_ENABLED", false),

		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "text/plain,application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB sync processing limit

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		RetrySweepMinutes: getEnvInt("RETRY_SWEEP_MINUTES", 15),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

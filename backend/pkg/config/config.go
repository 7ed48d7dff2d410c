package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// AI
	LLMBaseURL string
	LLMAPIKey  string
	ModelID    string
	LLMTimeout time.Duration

	// Embeddings
	EmbeddingProvider string // "http" or "openai"
	EmbeddingEndpoint string
	EmbeddingModel    string

	// Redis (embedding cache, optional)
	RedisURL          string
	EmbeddingCacheTTL time.Duration

	// Avatar generation (optional)
	ImageGenEndpoint string
	S3Bucket         string
	AWSRegion        string

	// Pipeline
	SimilarityPolicyFile string
	RunTimeout           time.Duration
	MaxConcurrentRuns    int

	// Tracing
	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelSampleRatio float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		LLMBaseURL:           getEnv("LLM_BASE_URL", "http://localhost:8081"),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		ModelID:              getEnv("MODEL_ID", "local"),
		LLMTimeout:           getEnvDuration("LLM_TIMEOUT", 300*time.Second),
		EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "http"),
		EmbeddingEndpoint:    getEnv("EMBEDDING_ENDPOINT", "http://localhost:8082/embedding"),
		EmbeddingModel:       getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		RedisURL:             getEnv("REDIS_URL", ""),
		EmbeddingCacheTTL:    getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		ImageGenEndpoint:     getEnv("IMAGE_GEN_ENDPOINT", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		AWSRegion:            getEnv("AWS_REGION", "us-east-2"),
		SimilarityPolicyFile: getEnv("SIMILARITY_POLICY_FILE", ""),
		RunTimeout:           getEnvDuration("RUN_TIMEOUT", 45*time.Minute),
		MaxConcurrentRuns:    getEnvInt("MAX_CONCURRENT_RUNS", 2),
		OtelEnabled:          getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelInsecure:         getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OtelSampleRatio:      getEnvFloat("OTEL_SAMPLER_RATIO", 0.1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"NEO4J_URI", c.Neo4jURI},
		{"NEO4J_USER", c.Neo4jUser},
		{"NEO4J_PASSWORD", c.Neo4jPassword},
		{"LLM_BASE_URL", c.LLMBaseURL},
		{"MODEL_ID", c.ModelID},
	}
	for _, r := range required {
		if r.value == "" {
			return apperrors.NewConfigValidationFailed(r.key, "is required")
		}
	}

	switch c.EmbeddingProvider {
	case "http":
		if c.EmbeddingEndpoint == "" {
			return apperrors.NewConfigValidationFailed("EMBEDDING_ENDPOINT", "is required for the http embedding provider")
		}
	case "openai":
	default:
		return apperrors.NewConfigValidationFailed("EMBEDDING_PROVIDER", fmt.Sprintf("must be http or openai, got %q", c.EmbeddingProvider))
	}
	if c.MaxConcurrentRuns < 1 {
		return apperrors.NewConfigValidationFailed("MAX_CONCURRENT_RUNS", "must be at least 1")
	}
	// Redis and avatar settings are optional
	return nil
}

// AvatarEnabled reports whether both the image endpoint and the bucket are set
func (c *Config) AvatarEnabled() bool {
	return c.ImageGenEndpoint != "" && c.S3Bucket != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"testing"
	"time"

	apperrors "atlas-of-us/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NEO4J_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.EmbeddingProvider)
	assert.Equal(t, 45*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
	assert.Equal(t, "us-east-2", cfg.AWSRegion)
	assert.False(t, cfg.AvatarEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RUN_TIMEOUT", "10m")
	t.Setenv("MAX_CONCURRENT_RUNS", "4")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("IMAGE_GEN_ENDPOINT", "http://images:8000/generate")
	t.Setenv("S3_BUCKET", "atlas-avatars")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 4, cfg.MaxConcurrentRuns)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.True(t, cfg.AvatarEnabled())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Neo4jURI:          "bolt://localhost:7687",
			Neo4jUser:         "neo4j",
			Neo4jPassword:     "password",
			LLMBaseURL:        "http://localhost:8081",
			ModelID:           "local",
			EmbeddingProvider: "http",
			EmbeddingEndpoint: "http://localhost:8082/embedding",
			MaxConcurrentRuns: 1,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"missing uri", func(c *Config) { c.Neo4jURI = "" }, "NEO4J_URI"},
		{"missing password", func(c *Config) { c.Neo4jPassword = "" }, "NEO4J_PASSWORD"},
		{"missing model", func(c *Config) { c.ModelID = "" }, "MODEL_ID"},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "cohere" }, "EMBEDDING_PROVIDER"},
		{"http provider without endpoint", func(c *Config) { c.EmbeddingEndpoint = "" }, "EMBEDDING_ENDPOINT"},
		{"no run slots", func(c *Config) { c.MaxConcurrentRuns = 0 }, "MAX_CONCURRENT_RUNS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))

			var cfgErr *apperrors.ErrConfigValidationFailed
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("ATLAS_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("ATLAS_TEST_INT", 7))

	t.Setenv("ATLAS_TEST_FLOAT", "0.42")
	assert.Equal(t, 0.42, getEnvFloat("ATLAS_TEST_FLOAT", 0.1))

	t.Setenv("ATLAS_TEST_DURATION", "bogus")
	assert.Equal(t, time.Second, getEnvDuration("ATLAS_TEST_DURATION", time.Second))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ATLAS_TEST_BOOL", "yes")
	assert.True(t, getEnvBool("ATLAS_TEST_BOOL", false))

	t.Setenv("ATLAS_TEST_BOOL", "off")
	assert.False(t, getEnvBool("ATLAS_TEST_BOOL", true))

	t.Setenv("ATLAS_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("ATLAS_TEST_BOOL", true))
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cognibase/cognibase/internal/domain"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Empty DATABASE_URL selects the embedded chromem store.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	ChunkSize          int           `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap       int           `envconfig:"CHUNK_OVERLAP" default:"200"`
	EmbeddingDimension int           `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	TopK               int           `envconfig:"TOP_K" default:"5"`
	MinScore           float32       `envconfig:"MIN_SCORE" default:"0"`
	MaxContextTokens   int           `envconfig:"MAX_CONTEXT_TOKENS" default:"2048"`
	GenerationTimeout  time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`
	RetryCount         int           `envconfig:"RETRY_COUNT" default:"2"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"cognibase-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("COGNIBASE", &cfg); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "failed to process config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects invalid settings at startup so no request ever runs
// against a broken configuration.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return configErr("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return configErr("CHUNK_OVERLAP cannot be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return configErr("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDimension <= 0 {
		return configErr("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	if c.TopK < 1 {
		return configErr("TOP_K must be at least 1, got %d", c.TopK)
	}
	if c.MaxContextTokens <= 0 {
		return configErr("MAX_CONTEXT_TOKENS must be positive, got %d", c.MaxContextTokens)
	}
	if c.GenerationTimeout <= 0 {
		return configErr("GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout)
	}
	if c.RetryCount < 0 {
		return configErr("RETRY_COUNT cannot be negative, got %d", c.RetryCount)
	}
	return nil
}

func configErr(format string, args ...interface{}) error {
	return domain.NewDomainError(domain.ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

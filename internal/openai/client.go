package openai

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cognibase/cognibase/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultMaxInputRunes approximates the embedding model's 8191-token input
	// limit at four runes per token. Inputs over this are rejected, never
	// silently truncated; callers chunk before encoding.
	DefaultMaxInputRunes = 8191 * 4
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = domain.NewDomainError(domain.ErrCodeValidation, "text cannot be empty")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = domain.NewDomainError(domain.ErrCodeConfiguration, "OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client wraps the OpenAI embeddings API. Encoding is deterministic for a
// fixed model, so equal inputs yield equal vectors.
type Client struct {
	api           EmbeddingAPI
	dimensions    int
	maxInputRunes int
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings for a batch of texts
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API may return data out of order; the Index field is authoritative.
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	MaxInputRunes       int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	maxInput := cfg.MaxInputRunes
	if maxInput <= 0 {
		maxInput = DefaultMaxInputRunes
	}
	return &Client{
		api:           NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel),
		dimensions:    dimensions,
		maxInputRunes: maxInput,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Dimensions returns the embedding dimensionality this client produces.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Encode generates an embedding for the given text
func (c *Client) Encode(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EncodeBatch generates embeddings for a batch of texts, preserving input
// order. Results are equivalent to calling Encode per element.
func (c *Client) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	for i, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
		if n := utf8.RuneCountInString(text); n > c.maxInputRunes {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEncoding,
				"input exceeds embedding model maximum length",
				fmt.Errorf("input %d is %d runes, limit %d", i, n, c.maxInputRunes))
		}
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for i, embedding := range embeddings {
		if len(embedding) != c.dimensions {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEncoding,
				"embedding has wrong dimensions",
				fmt.Errorf("input %d: expected %d, got %d", i, c.dimensions, len(embedding)))
		}
	}

	return embeddings, nil
}

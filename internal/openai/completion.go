package openai

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cognibase/cognibase/internal/domain"
)

const (
	// DefaultCompletionModel is the OpenAI model used for answer generation
	DefaultCompletionModel = openai.GPT4oMini
	// DefaultMaxAnswerTokens caps the length of generated answers
	DefaultMaxAnswerTokens = 1024
)

// CompletionAPI defines the interface for chat completion calls
type CompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionClient wraps the OpenAI chat completions API. It issues exactly
// one request per Generate call; retry policy belongs to the caller.
type CompletionClient struct {
	api             CompletionAPI
	model           string
	temperature     float32
	maxAnswerTokens int
}

type CompletionConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxAnswerTokens int
}

// NewCompletionClient creates a completion client using defaults.
func NewCompletionClient(apiKey string) *CompletionClient {
	return NewCompletionClientWithConfig(CompletionConfig{APIKey: apiKey})
}

// NewCompletionClientWithConfig creates a completion client with explicit configuration.
func NewCompletionClientWithConfig(cfg CompletionConfig) *CompletionClient {
	model := cfg.Model
	if model == "" {
		model = DefaultCompletionModel
	}
	maxTokens := cfg.MaxAnswerTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxAnswerTokens
	}
	return &CompletionClient{
		api:             openai.NewClient(cfg.APIKey),
		model:           model,
		temperature:     cfg.Temperature,
		maxAnswerTokens: maxTokens,
	}
}

// Generate sends the prompt to the completion service and returns the
// generated text. Failures are mapped to the three distinguishable kinds the
// pipeline acts on: RATE_LIMITED, CONTENT_BLOCKED, and SERVICE_ERROR.
func (c *CompletionClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxAnswerTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewDomainError(domain.ErrCodeServiceError, "generation service returned no choices")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", domain.ErrContentBlocked
	}

	return choice.Message.Content, nil
}

// classifyCompletionError maps transport and API errors onto the domain
// taxonomy. CONTENT_BLOCKED must stay distinguishable from generic faults.
func classifyCompletionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.NewDomainErrorWithCause(domain.ErrCodeRateLimited,
				"generation service rate limited the request", err)
		case isContentPolicyCode(apiErr.Code):
			return domain.NewDomainErrorWithCause(domain.ErrCodeContentBlocked,
				"generation service refused the request on policy grounds", err)
		default:
			return domain.NewDomainErrorWithCause(domain.ErrCodeServiceError,
				"generation service failed", err)
		}
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeServiceError, "generation request failed", err)
}

func isContentPolicyCode(code any) bool {
	s, ok := code.(string)
	return ok && (s == "content_policy_violation" || s == "content_filter")
}

package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/telemetry"
)

// QuestionState tracks where a question is in the answering pipeline.
type QuestionState string

const (
	StateReceived   QuestionState = "received"
	StateRetrieving QuestionState = "retrieving"
	StateAssembling QuestionState = "assembling"
	StateGenerating QuestionState = "generating"
	StateDone       QuestionState = "done"
	StateFailed     QuestionState = "failed"
)

// Generator defines the interface to the text-generation service
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AskConfig holds the per-question pipeline settings.
type AskConfig struct {
	TopK             int
	MinScore         float32
	MaxContextTokens int
	Timeout          time.Duration
	RetryCount       int
}

// AskInput is one question. TopK, MinScore, and Filter override the service
// defaults when set.
type AskInput struct {
	Question string
	TopK     int
	MinScore *float32
	Filter   domain.Metadata
}

// AskService orchestrates one question end to end:
// received → retrieving → assembling → generating → done | failed.
// Questions are independent units of work; concurrent Ask calls share nothing
// but the injected collaborators.
type AskService struct {
	retriever *Retriever
	assembler *PromptAssembler
	generator Generator
	cfg       AskConfig
}

func NewAskService(retriever *Retriever, assembler *PromptAssembler, generator Generator, cfg AskConfig) *AskService {
	if cfg.TopK < 1 {
		cfg.TopK = 5
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &AskService{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cfg:       cfg,
	}
}

// Ask answers one question. The whole run is bounded by the configured
// timeout; on expiry the question fails with a TIMEOUT reason and no partial
// answer. Failures always carry a typed reason separating retrieval faults,
// generation faults, content-policy refusals, and timeouts.
func (s *AskService) Ask(ctx context.Context, input AskInput) (*domain.Answer, error) {
	state := StateReceived
	questionID := uuid.NewString()

	if input.Question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	topK := input.TopK
	if topK == 0 {
		topK = s.cfg.TopK
	}
	minScore := s.cfg.MinScore
	if input.MinScore != nil {
		minScore = *input.MinScore
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	state = StateRetrieving
	retrieveCtx, span := telemetry.StartSpan(ctx, "ask.retrieve", telemetry.SpanAttributes{
		QuestionID: questionID,
		Operation:  "retrieve",
	})
	results, err := s.retriever.Retrieve(retrieveCtx, input.Question, topK, minScore, input.Filter)
	if err != nil {
		span.SetError(err)
		span.End()
		return nil, s.fail(questionID, state, err)
	}
	span.End()

	state = StateAssembling
	prompt := s.assembler.Assemble(input.Question, results, s.cfg.MaxContextTokens)

	state = StateGenerating
	generateCtx, span := telemetry.StartSpan(ctx, "ask.generate", telemetry.SpanAttributes{
		QuestionID: questionID,
		Operation:  "generate",
	})
	text, err := s.generateWithRetry(generateCtx, prompt.Text)
	if err != nil {
		span.SetError(err)
		span.End()
		return nil, s.fail(questionID, state, err)
	}
	span.End()

	state = StateDone
	log.Printf("question %s answered (state=%s, grounded=%t, sources=%d)",
		questionID, state, prompt.Grounded, len(prompt.Sources))

	return &domain.Answer{
		Text:       text,
		Grounded:   prompt.Grounded,
		Provenance: prompt.Sources,
	}, nil
}

// generateWithRetry calls the generator at most RetryCount+1 times, backing
// off between attempts. Only RATE_LIMITED and SERVICE_ERROR are retried;
// CONTENT_BLOCKED is terminal on the first response.
func (s *AskService) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	attempts := 0
	for {
		text, err := s.generator.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		switch domain.ErrorCode(err) {
		case domain.ErrCodeRateLimited, domain.ErrCodeServiceError:
		default:
			return "", err
		}

		attempts++
		if attempts > s.cfg.RetryCount {
			return "", err
		}

		select {
		case <-ctx.Done():
			// The deadline expired while waiting out the backoff; report that,
			// not the retryable error that put us here.
			return "", ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// fail converts deadline expiry into the TIMEOUT reason and logs the terminal
// transition; every other error keeps its own typed reason.
func (s *AskService) fail(questionID string, state QuestionState, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.NewDomainErrorWithCause(domain.ErrCodeTimeout, "question deadline exceeded", err)
	}
	log.Printf("question %s failed during %s: %v", questionID, state, err)
	return err
}

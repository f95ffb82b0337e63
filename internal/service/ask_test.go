package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cognibase/cognibase/internal/domain"
)

// MockGenerator mocks the answer generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func askService(encoder *MockEncoder, store *MockVectorStore, generator Generator, cfg AskConfig) *AskService {
	return NewAskService(NewRetriever(encoder, store), NewPromptAssembler(), generator, cfg)
}

func TestAskService_Ask_GroundedAnswer(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{TopK: 3})

	mockEncoder.On("Encode", mock.Anything, "What is the capital of France?").Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, 3, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("doc-1:0000", "Paris is the capital of France.", 0.97),
	}, nil)
	mockGenerator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) > 0
	})).Return("Paris.", nil)

	answer, err := svc.Ask(context.Background(), AskInput{Question: "What is the capital of France?"})

	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer.Text)
	assert.True(t, answer.Grounded)
	require.Len(t, answer.Provenance, 1)
	assert.Equal(t, "doc-1:0000", answer.Provenance[0].RecordID)
	assert.Equal(t, "doc-1", answer.Provenance[0].DocumentID)
}

func TestAskService_Ask_EmptyStoreProducesUngroundedAnswer(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{}, nil)
	mockGenerator.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) > 0
	})).Return("I don't have documents on that.", nil)

	answer, err := svc.Ask(context.Background(), AskInput{Question: "anything?"})

	require.NoError(t, err)
	assert.False(t, answer.Grounded)
	assert.Empty(t, answer.Provenance)
	mockGenerator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestAskService_Ask_ContentBlockedIsNeverRetried(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{RetryCount: 3})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("rec-1", "passage", 0.9),
	}, nil)
	mockGenerator.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrContentBlocked)

	_, err := svc.Ask(context.Background(), AskInput{Question: "blocked question"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeContentBlocked, domain.ErrorCode(err))
	mockGenerator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestAskService_Ask_RateLimitedIsRetriedThenSucceeds(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{RetryCount: 2})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("rec-1", "passage", 0.9),
	}, nil)
	mockGenerator.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrRateLimited).Twice()
	mockGenerator.On("Generate", mock.Anything, mock.Anything).Return("the answer", nil).Once()

	answer, err := svc.Ask(context.Background(), AskInput{Question: "busy question"})

	require.NoError(t, err)
	assert.Equal(t, "the answer", answer.Text)
	mockGenerator.AssertNumberOfCalls(t, "Generate", 3)
}

func TestAskService_Ask_RateLimitedExhaustsRetries(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{RetryCount: 1})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("rec-1", "passage", 0.9),
	}, nil)
	mockGenerator.On("Generate", mock.Anything, mock.Anything).Return("", domain.ErrRateLimited)

	_, err := svc.Ask(context.Background(), AskInput{Question: "busy question"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeRateLimited, domain.ErrorCode(err))
	mockGenerator.AssertNumberOfCalls(t, "Generate", 2)
}

func TestAskService_Ask_DeadlineBecomesTimeout(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	slowGenerator := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc := askService(mockEncoder, mockStore, slowGenerator, AskConfig{Timeout: 20 * time.Millisecond})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("rec-1", "passage", 0.9),
	}, nil)

	_, err := svc.Ask(context.Background(), AskInput{Question: "slow question"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeTimeout, domain.ErrorCode(err))
}

func TestAskService_Ask_DeadlineDuringBackoffBecomesTimeout(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	rateLimited := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", domain.ErrRateLimited
	})
	// the deadline is shorter than the first backoff interval, so it expires
	// while waiting to retry
	svc := askService(mockEncoder, mockStore, rateLimited, AskConfig{
		Timeout:    30 * time.Millisecond,
		RetryCount: 5,
	})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.RetrievalResult{
		scoredRecord("rec-1", "passage", 0.9),
	}, nil)

	_, err := svc.Ask(context.Background(), AskInput{Question: "busy question"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeTimeout, domain.ErrorCode(err))
}

func TestAskService_Ask_EmptyQuestion(t *testing.T) {
	svc := askService(new(MockEncoder), new(MockVectorStore), new(MockGenerator), AskConfig{})

	_, err := svc.Ask(context.Background(), AskInput{Question: ""})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidQuery, domain.ErrorCode(err))
}

func TestAskService_Ask_RetrievalFailureFailsTheQuestion(t *testing.T) {
	mockEncoder := new(MockEncoder)
	mockStore := new(MockVectorStore)
	mockGenerator := new(MockGenerator)
	svc := askService(mockEncoder, mockStore, mockGenerator, AskConfig{})

	mockEncoder.On("Encode", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockStore.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrStoreUnavailable)

	_, err := svc.Ask(context.Background(), AskInput{Question: "question"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStoreUnavailable, domain.ErrorCode(err))
	mockGenerator.AssertNotCalled(t, "Generate")
}

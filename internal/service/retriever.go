package service

import (
	"context"
	"strings"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/vectorstore"
)

// Encoder defines the interface for turning text into embeddings
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Retriever answers similarity queries: it encodes the query text, searches
// the vector store, and returns a ranked, deduplicated result.
type Retriever struct {
	encoder Encoder
	store   vectorstore.VectorStore
}

func NewRetriever(encoder Encoder, store vectorstore.VectorStore) *Retriever {
	return &Retriever{encoder: encoder, store: store}
}

// Retrieve returns up to topK passages ranked by descending similarity.
// Results scoring below minScore are dropped, and passages with identical or
// near-identical text keep only their highest-scoring occurrence. No matches
// is success: an empty result, never an error.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, topK int, minScore float32, filter domain.Metadata) (domain.RetrievalResult, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	embedding, err := r.encoder.Encode(ctx, queryText)
	if err != nil {
		return nil, err
	}

	results, err := r.store.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, err
	}

	// Results arrive ranked, so the first occurrence of a passage text is its
	// highest-scoring one; later duplicates are dropped.
	seen := make(map[string]struct{}, len(results))
	deduped := make(domain.RetrievalResult, 0, len(results))
	for _, sr := range results {
		if sr.Score < minScore {
			continue
		}
		key := normalizePassageText(sr.Record.Passage.Text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, sr)
	}

	return deduped, nil
}

// normalizePassageText collapses whitespace and case so passages duplicated
// across overlapping chunk regions compare equal.
func normalizePassageText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Package vectorstore defines the contract to the external similarity store.
// The index structure and metric live in the backing store; the pipeline only
// depends on Upsert and Search behaving as documented here.
package vectorstore

import (
	"context"

	"github.com/cognibase/cognibase/internal/domain"
)

// VectorStore persists (embedding, passage, metadata) records and answers
// nearest-neighbor queries by cosine similarity.
//
// Upsert is idempotent by record ID when the caller supplies one and assigns
// new IDs otherwise; a failed batch must leave no partial record visible to
// Search. Connectivity faults surface as STORE_UNAVAILABLE domain errors and
// nowhere else in the pipeline.
//
// ReplaceDocument swaps every record owned by a document for the given batch
// in one step, so a re-ingested document never loses its previous records to
// a failure between delete and insert.
//
// Search returns up to topK records ranked by descending similarity, ties
// broken by record ID ascending so identical queries against an unchanged
// store rank identically. topK < 1 is an INVALID_QUERY error. An empty store
// yields an empty result, never an error.
type VectorStore interface {
	Upsert(ctx context.Context, records []domain.Record) ([]string, error)
	ReplaceDocument(ctx context.Context, documentID string, records []domain.Record) ([]string, error)
	Search(ctx context.Context, embedding []float32, topK int, filter domain.Metadata) (domain.RetrievalResult, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

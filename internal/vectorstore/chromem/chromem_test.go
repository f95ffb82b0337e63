package chromem

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognibase/cognibase/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	store, err := NewStore(Config{})
	require.NoError(t, err)
	return store
}

// unit returns a normalized 3-dim vector so similarity scores are exact cosines.
func unit(x, y, z float32) []float32 {
	norm := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	return []float32{x / norm, y / norm, z / norm}
}

func record(id, docID string, index int, text string, embedding []float32, md domain.Metadata) domain.Record {
	return domain.Record{
		ID: id,
		Passage: domain.Passage{
			DocumentID: docID,
			Index:      index,
			Text:       text,
		},
		Embedding: embedding,
		Metadata:  md,
	}
}

func TestStore_Upsert_AssignsIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.Upsert(ctx, []domain.Record{
		record("", "doc-1", 0, "first", unit(1, 0, 0), nil),
		record("", "doc-1", 1, "second", unit(0, 1, 0), nil),
	})

	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.NotEmpty(t, ids[1])
	assert.NotEqual(t, ids[0], ids[1])
}

func TestStore_Upsert_IdempotentByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := record("rec-1", "doc-1", 0, "original", unit(1, 0, 0), nil)
	_, err := store.Upsert(ctx, []domain.Record{rec})
	require.NoError(t, err)

	rec.Passage.Text = "replaced"
	ids, err := store.Upsert(ctx, []domain.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-1"}, ids)

	results, err := store.Search(ctx, unit(1, 0, 0), 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "replaced", results[0].Record.Passage.Text)
}

func TestStore_Search_RanksByCosineSimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.Record{
		record("rec-a", "doc-1", 0, "close", unit(1, 0.1, 0), nil),
		record("rec-b", "doc-1", 1, "far", unit(0, 1, 0), nil),
		record("rec-c", "doc-1", 2, "exact", unit(1, 0, 0), nil),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, unit(1, 0, 0), 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "rec-c", results[0].Record.ID)
	assert.Equal(t, "rec-a", results[1].Record.ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-4)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStore_Search_DeterministicOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical embeddings: ties must break by record ID.
	_, err := store.Upsert(ctx, []domain.Record{
		record("rec-b", "doc-1", 1, "twin b", unit(1, 0, 0), nil),
		record("rec-a", "doc-1", 0, "twin a", unit(1, 0, 0), nil),
	})
	require.NoError(t, err)

	first, err := store.Search(ctx, unit(1, 0, 0), 2, nil)
	require.NoError(t, err)
	second, err := store.Search(ctx, unit(1, 0, 0), 2, nil)
	require.NoError(t, err)

	assert.Equal(t, first.IDs(), second.IDs())
	assert.Equal(t, []string{"rec-a", "rec-b"}, first.IDs())
}

func TestStore_Search_EmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), unit(1, 0, 0), 5, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Search_InvalidTopK(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Search(context.Background(), unit(1, 0, 0), 0, nil)

	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidQuery, domain.ErrorCode(err))
}

func TestStore_Search_MetadataFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.Record{
		record("rec-a", "doc-1", 0, "from wiki", unit(1, 0, 0), domain.Metadata{"source": domain.StringValue("wiki")}),
		record("rec-b", "doc-2", 0, "from blog", unit(1, 0, 0), domain.Metadata{"source": domain.StringValue("blog")}),
		record("rec-c", "doc-3", 0, "year as number", unit(1, 0, 0), domain.Metadata{"year": domain.NumberValue(2024)}),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, unit(1, 0, 0), 10, domain.Metadata{"source": domain.StringValue("wiki")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-a", results[0].Record.ID)

	// typed filter: the string "2024" must not match the number 2024
	results, err = store.Search(ctx, unit(1, 0, 0), 10, domain.Metadata{"year": domain.StringValue("2024")})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search(ctx, unit(1, 0, 0), 10, domain.Metadata{"year": domain.NumberValue(2024)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-c", results[0].Record.ID)
}

func TestStore_ReplaceDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.Record{
		record("doc-1:0000", "doc-1", 0, "old first", unit(1, 0, 0), nil),
		record("doc-1:0001", "doc-1", 1, "old second", unit(0, 1, 0), nil),
		record("doc-2:0000", "doc-2", 0, "other", unit(0, 0, 1), nil),
	})
	require.NoError(t, err)

	ids, err := store.ReplaceDocument(ctx, "doc-1", []domain.Record{
		record("doc-1:0000", "doc-1", 0, "new only", unit(1, 0, 0), nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1:0000"}, ids)

	results, err := store.Search(ctx, unit(1, 0, 0), 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// the shrunk document's stale second record is gone
	assert.Equal(t, []string{"doc-1:0000", "doc-2:0000"}, results.IDs())
	assert.Equal(t, "new only", results[0].Record.Passage.Text)
}

func TestStore_DeleteByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, []domain.Record{
		record("rec-a", "doc-1", 0, "keep", unit(1, 0, 0), nil),
		record("rec-b", "doc-2", 0, "drop", unit(0, 1, 0), nil),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteByDocument(ctx, "doc-2"))

	results, err := store.Search(ctx, unit(0, 1, 0), 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rec-a", results[0].Record.ID)
}

func TestStore_RoundTripsPassageFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := record("rec-1", "doc-9", 3, "passage text", unit(1, 0, 0), domain.Metadata{"public": domain.BoolValue(true)})
	rec.Passage.Start = 120
	rec.Passage.End = 180
	_, err := store.Upsert(ctx, []domain.Record{rec})
	require.NoError(t, err)

	results, err := store.Search(ctx, unit(1, 0, 0), 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0].Record
	assert.Equal(t, "doc-9", got.Passage.DocumentID)
	assert.Equal(t, 3, got.Passage.Index)
	assert.Equal(t, 120, got.Passage.Start)
	assert.Equal(t, 180, got.Passage.End)
	assert.Equal(t, domain.BoolValue(true), got.Metadata["public"])
}

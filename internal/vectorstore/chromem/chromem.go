// Package chromem implements the vector store contract on the embedded
// chromem-go database. It backs development and test runs that have no
// DATABASE_URL configured.
package chromem

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/cognibase/cognibase/internal/domain"
)

const (
	collectionName = "records"

	metaDocumentID = "document_id"
	metaChunkIndex = "chunk_index"
	metaStart      = "start_pos"
	metaEnd        = "end_pos"
	metaUser       = "user_metadata"
)

type Config struct {
	Persistent bool
	Path       string
}

// Store wraps a chromem collection. Embeddings are always supplied by the
// caller, so no embedding function is configured on the collection.
type Store struct {
	collection *chromemgo.Collection
}

func NewStore(cfg Config) (*Store, error) {
	var db *chromemgo.DB
	if !cfg.Persistent {
		db = chromemgo.NewDB()
	} else {
		d, err := chromemgo.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to open chromem store", err)
		}
		db = d
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to open chromem collection", err)
	}

	return &Store{collection: collection}, nil
}

func (s *Store) Upsert(ctx context.Context, records []domain.Record) ([]string, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		metadata, err := encodeDocMetadata(rec)
		if err != nil {
			return nil, err
		}

		doc := chromemgo.Document{
			ID:        id,
			Metadata:  metadata,
			Embedding: rec.Embedding,
			Content:   rec.Passage.Text,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to add record", err)
		}
	}
	return ids, nil
}

// ReplaceDocument swaps a document's records for the new batch. chromem has
// no transactions; the delete and re-add run back to back in process, which
// is the closest an embedded store gets to the atomic replace of the
// pgvector implementation.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, records []domain.Record) ([]string, error) {
	if err := s.DeleteByDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.Upsert(ctx, records)
}

func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter domain.Metadata) (domain.RetrievalResult, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}

	count := s.collection.Count()
	if count == 0 {
		return domain.RetrievalResult{}, nil
	}

	// Query the whole collection and filter/rank here: chromem's where clause
	// matches strings only, which would conflate "2024" with the number 2024.
	results, err := s.collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to query records", err)
	}

	scored := make(domain.RetrievalResult, 0, len(results))
	for _, res := range results {
		rec, err := decodeResult(res)
		if err != nil {
			return nil, err
		}
		if !rec.Metadata.Matches(filter) {
			continue
		}
		scored = append(scored, domain.ScoredRecord{Record: rec, Score: res.Similarity})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]string{metaDocumentID: documentID}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to delete document records", err)
	}
	return nil
}

func encodeDocMetadata(rec domain.Record) (map[string]string, error) {
	metadata := map[string]string{
		metaDocumentID: rec.Passage.DocumentID,
		metaChunkIndex: strconv.Itoa(rec.Passage.Index),
		metaStart:      strconv.Itoa(rec.Passage.Start),
		metaEnd:        strconv.Itoa(rec.Passage.End),
	}
	if len(rec.Metadata) > 0 {
		payload, err := json.Marshal(rec.Metadata.ToJSON())
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to encode metadata", err)
		}
		metadata[metaUser] = string(payload)
	}
	return metadata, nil
}

func decodeResult(res chromemgo.Result) (domain.Record, error) {
	rec := domain.Record{
		ID: res.ID,
		Passage: domain.Passage{
			DocumentID: res.Metadata[metaDocumentID],
			Text:       res.Content,
		},
	}
	rec.Passage.Index, _ = strconv.Atoi(res.Metadata[metaChunkIndex])
	rec.Passage.Start, _ = strconv.Atoi(res.Metadata[metaStart])
	rec.Passage.End, _ = strconv.Atoi(res.Metadata[metaEnd])

	if raw, ok := res.Metadata[metaUser]; ok && raw != "" {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return domain.Record{}, domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, "failed to decode metadata", err)
		}
		md, err := domain.MetadataFromJSON(obj)
		if err != nil {
			return domain.Record{}, err
		}
		rec.Metadata = md
	}
	return rec, nil
}

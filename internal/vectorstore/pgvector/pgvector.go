// Package pgvector implements the vector store contract on PostgreSQL with
// the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/cognibase/cognibase/internal/domain"
)

// Store persists records in the records table and searches them with the
// cosine distance operator.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert inserts or replaces the given records in a single transaction so a
// failed batch leaves nothing visible to Search. Records without an ID get a
// fresh UUID; records with an ID are overwritten in place.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return []string{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	ids, err := upsertInTx(ctx, tx, records)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("failed to commit upsert", err)
	}

	return ids, nil
}

// ReplaceDocument deletes the document's existing records and inserts the new
// batch in the same transaction, so a failure leaves the previous records in
// place and a success never exposes a mix of old and new.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, records []domain.Record) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM records WHERE document_id = $1`, documentID); err != nil {
		return nil, storeErr("failed to delete document records", err)
	}

	ids, err := upsertInTx(ctx, tx, records)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("failed to commit replace", err)
	}

	return ids, nil
}

func upsertInTx(ctx context.Context, tx pgx.Tx, records []domain.Record) ([]string, error) {
	ids := make([]string, len(records))
	now := time.Now().UTC()

	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		metadata, err := encodeMetadata(rec.Metadata)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO records
				(id, document_id, chunk_index, content, start_pos, end_pos, metadata, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				chunk_index = EXCLUDED.chunk_index,
				content = EXCLUDED.content,
				start_pos = EXCLUDED.start_pos,
				end_pos = EXCLUDED.end_pos,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding`,
			id,
			rec.Passage.DocumentID,
			rec.Passage.Index,
			rec.Passage.Text,
			rec.Passage.Start,
			rec.Passage.End,
			metadata,
			pgv.NewVector(rec.Embedding),
			now,
		)
		if err != nil {
			return nil, storeErr("failed to upsert record", err)
		}
	}

	return ids, nil
}

// Search ranks records by cosine similarity descending. Ties are broken by
// record ID so repeated queries against an unchanged table return the same
// order.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter domain.Metadata) (domain.RetrievalResult, error) {
	if topK < 1 {
		return nil, domain.ErrInvalidTopK
	}

	var query string
	var args []interface{}
	if len(filter) > 0 {
		filterJSON, err := encodeMetadata(filter)
		if err != nil {
			return nil, err
		}
		query = `
			SELECT id, document_id, chunk_index, content, start_pos, end_pos, metadata,
			       1 - (embedding <=> $1) AS score
			FROM records
			WHERE metadata @> $2
			ORDER BY score DESC, id ASC
			LIMIT $3`
		args = []interface{}{pgv.NewVector(embedding), filterJSON, topK}
	} else {
		query = `
			SELECT id, document_id, chunk_index, content, start_pos, end_pos, metadata,
			       1 - (embedding <=> $1) AS score
			FROM records
			ORDER BY score DESC, id ASC
			LIMIT $2`
		args = []interface{}{pgv.NewVector(embedding), topK}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("failed to search records", err)
	}
	defer rows.Close()

	results := make(domain.RetrievalResult, 0, topK)
	for rows.Next() {
		var rec domain.Record
		var metadata []byte
		var score float32
		if err := rows.Scan(
			&rec.ID,
			&rec.Passage.DocumentID,
			&rec.Passage.Index,
			&rec.Passage.Text,
			&rec.Passage.Start,
			&rec.Passage.End,
			&metadata,
			&score,
		); err != nil {
			return nil, storeErr("failed to scan record", err)
		}
		md, err := decodeMetadata(metadata)
		if err != nil {
			return nil, err
		}
		rec.Metadata = md
		results = append(results, domain.ScoredRecord{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to read search results", err)
	}

	return results, nil
}

// DeleteByDocument removes every record owned by a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM records WHERE document_id = $1`, documentID)
	if err != nil {
		return storeErr("failed to delete document records", err)
	}
	return nil
}

func encodeMetadata(md domain.Metadata) ([]byte, error) {
	if len(md) == 0 {
		return []byte(`{}`), nil
	}
	payload, err := json.Marshal(md.ToJSON())
	if err != nil {
		return nil, storeErr("failed to encode metadata", err)
	}
	return payload, nil
}

func decodeMetadata(raw []byte) (domain.Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, storeErr("failed to decode metadata", err)
	}
	return domain.MetadataFromJSON(obj)
}

func storeErr(message string, err error) *domain.DomainError {
	return domain.NewDomainErrorWithCause(domain.ErrCodeStoreUnavailable, message, err)
}

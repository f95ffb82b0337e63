package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/pagination"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Create inserts a document row, or refreshes it when the same document is
// submitted again for re-ingestion.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	metadata, err := encodeMetadataJSON(doc.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (id, content, metadata, status, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     metadata = EXCLUDED.metadata,
		     status = EXCLUDED.status,
		     error = EXCLUDED.error,
		     updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Text, metadata, doc.Status, nullableString(doc.Error), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var metadata []byte
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, content, metadata, status, error, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Text, &metadata, &doc.Status, &errMsg, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		doc.Error = errMsg.String
	}
	doc.Metadata, err = decodeMetadataJSON(metadata)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, content, metadata, status, error, created_at, updated_at
			 FROM documents
			 WHERE (updated_at, id) < ($1, $2)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, content, metadata, status, error, created_at, updated_at
			 FROM documents
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &pagination.PageResult[*domain.Document]{
		Items:   items,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var metadata []byte
		var errMsg pgtype.Text
		if err := rows.Scan(&doc.ID, &doc.Text, &metadata, &doc.Status, &errMsg, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			doc.Error = errMsg.String
		}
		md, err := decodeMetadataJSON(metadata)
		if err != nil {
			return nil, err
		}
		doc.Metadata = md
		results = append(results, &doc)
	}
	return results, rows.Err()
}

func encodeMetadataJSON(md domain.Metadata) ([]byte, error) {
	if len(md) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(md.ToJSON())
}

func decodeMetadataJSON(raw []byte) (domain.Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return domain.MetadataFromJSON(obj)
}

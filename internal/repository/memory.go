package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/pagination"
)

// MemoryDocumentRepository keeps document rows in memory. It backs runs
// without a DATABASE_URL, where the embedded vector store is used and
// document state does not need to survive restarts.
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*domain.Document
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{docs: make(map[string]*domain.Document)}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *MemoryDocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *MemoryDocumentRepository) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.Status = status
	doc.Error = errMsg
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *MemoryDocumentRepository) ListWithCursor(_ context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error) {
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	all := make([]*domain.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		copied := *doc
		all = append(all, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if cursor != nil {
		for i, doc := range all {
			if doc.UpdatedAt.Before(cursor.Timestamp) ||
				(doc.UpdatedAt.Equal(cursor.Timestamp) && doc.ID < cursor.LastID) {
				all = all[i:]
				break
			}
			if i == len(all)-1 {
				all = nil
			}
		}
	}

	hasMore := len(all) > limit
	items := all
	if hasMore {
		items = all[:limit]
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

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/vectorstore"
)

// DocumentRepository defines the repository interface for document rows
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
}

// DocumentArchiver archives raw document text to object storage
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, documentID, text string) error
}

// IngestInput carries one document submitted for ingestion.
// DocumentID is optional; supplying one makes re-ingestion replace the
// document's previous records.
type IngestInput struct {
	DocumentID string
	Text       string
	Metadata   domain.Metadata
}

// IngestResult reports what one ingestion produced.
type IngestResult struct {
	DocumentID string
	RecordIDs  []string
}

// IngestService turns a document into searchable records:
// chunk, batch-encode, then a single store upsert. A failure anywhere aborts
// this document only and leaves nothing from it visible to search.
type IngestService struct {
	chunker *Chunker
	encoder Encoder
	store   vectorstore.VectorStore
	docs    DocumentRepository
	archive DocumentArchiver
}

func NewIngestService(chunker *Chunker, encoder Encoder, store vectorstore.VectorStore) *IngestService {
	return NewIngestServiceWithRepo(chunker, encoder, store, nil, nil)
}

func NewIngestServiceWithRepo(
	chunker *Chunker,
	encoder Encoder,
	store vectorstore.VectorStore,
	docs DocumentRepository,
	archive DocumentArchiver,
) *IngestService {
	return &IngestService{
		chunker: chunker,
		encoder: encoder,
		store:   store,
		docs:    docs,
		archive: archive,
	}
}

// Ingest processes one document synchronously and returns the identifiers of
// the records created.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	docID := input.DocumentID
	replacing := docID != ""
	if docID == "" {
		docID = uuid.NewString()
	}

	doc := &domain.Document{
		ID:        docID,
		Text:      input.Text,
		Metadata:  input.Metadata,
		Status:    domain.DocumentStatusProcessing,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if s.docs != nil {
		if err := s.docs.Create(ctx, doc); err != nil {
			return nil, err
		}
	}

	recordIDs, err := s.buildAndStore(ctx, docID, input, replacing)
	if err != nil {
		if s.docs != nil {
			if markErr := s.docs.UpdateStatus(ctx, docID, domain.DocumentStatusFailed, err.Error()); markErr != nil {
				log.Printf("failed to mark document %s failed: %v", docID, markErr)
			}
		}
		return nil, err
	}

	if s.archive != nil {
		// The archive is advisory; the store already holds the passages.
		if err := s.archive.ArchiveDocument(ctx, docID, input.Text); err != nil {
			log.Printf("failed to archive document %s: %v", docID, err)
		}
	}

	if s.docs != nil {
		if err := s.docs.UpdateStatus(ctx, docID, domain.DocumentStatusReady, ""); err != nil {
			return nil, err
		}
	}

	return &IngestResult{DocumentID: docID, RecordIDs: recordIDs}, nil
}

// Reprocess rebuilds the records for a document that is already persisted,
// replacing whatever records it had. Used by the background worker for queued
// documents and for manual re-ingestion.
func (s *IngestService) Reprocess(ctx context.Context, doc *domain.Document) ([]string, error) {
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if s.docs != nil {
		if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
			return nil, err
		}
	}

	input := IngestInput{DocumentID: doc.ID, Text: doc.Text, Metadata: doc.Metadata}
	recordIDs, err := s.buildAndStore(ctx, doc.ID, input, true)
	if err != nil {
		if s.docs != nil {
			if markErr := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, err.Error()); markErr != nil {
				log.Printf("failed to mark document %s failed: %v", doc.ID, markErr)
			}
		}
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.ArchiveDocument(ctx, doc.ID, doc.Text); err != nil {
			log.Printf("failed to archive document %s: %v", doc.ID, err)
		}
	}

	if s.docs != nil {
		if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, ""); err != nil {
			return nil, err
		}
	}

	return recordIDs, nil
}

func (s *IngestService) buildAndStore(ctx context.Context, docID string, input IngestInput, replacing bool) ([]string, error) {
	passages := s.chunker.Split(docID, input.Text)
	if len(passages) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	embeddings, err := s.encoder.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, len(passages))
	for i, p := range passages {
		records[i] = domain.Record{
			// Deterministic IDs make re-ingesting the same document idempotent.
			ID:        fmt.Sprintf("%s:%04d", docID, p.Index),
			Passage:   p,
			Embedding: embeddings[i],
			Metadata:  input.Metadata,
		}
	}

	if replacing {
		// Swap out the previous version's records in one step so a shrunk
		// document leaves no stale passages behind and a failed re-ingest
		// keeps the old ones intact.
		return s.store.ReplaceDocument(ctx, docID, records)
	}

	return s.store.Upsert(ctx, records)
}

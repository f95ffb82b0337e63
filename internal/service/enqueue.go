package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cognibase/cognibase/internal/domain"
)

// IngestJobRepository defines the repository interface for ingest job rows
type IngestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
}

// TxRepositories exposes the repositories bound to one transaction.
type TxRepositories interface {
	Documents() DocumentRepository
	IngestJobs() IngestJobRepository
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// EnqueueService accepts documents for asynchronous ingestion. The document
// row and its job are created in one transaction, so an accepted document
// always has a job and vice versa.
type EnqueueService struct {
	tx TxRunner
}

func NewEnqueueService(tx TxRunner) *EnqueueService {
	return &EnqueueService{tx: tx}
}

// Enqueue validates the document, persists it as pending, and queues an
// ingest job for the background worker.
func (s *EnqueueService) Enqueue(ctx context.Context, input IngestInput) (*domain.IngestJob, error) {
	docID := input.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        docID,
		Text:      input.Text,
		Metadata:  input.Metadata,
		Status:    domain.DocumentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	job := &domain.IngestJob{
		ID:         uuid.NewString(),
		DocumentID: docID,
		Status:     domain.IngestJobStatusPending,
		CreatedAt:  now,
	}

	err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

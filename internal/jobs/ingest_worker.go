package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cognibase/cognibase/internal/domain"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll claims
	claimBatchSize = 50
)

// IngestJobQueue defines the interface for claiming and updating ingest jobs
type IngestJobQueue interface {
	// ClaimPending atomically claims a batch of pending jobs for this worker
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)

	// UpdateStatus updates the status of an ingest job
	UpdateStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentSource loads queued documents for processing
type DocumentSource interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor turns a queued document into searchable records
type DocumentProcessor interface {
	Reprocess(ctx context.Context, doc *domain.Document) ([]string, error)
}

// IngestWorker processes queued ingest jobs
type IngestWorker struct {
	queue     IngestJobQueue
	docs      DocumentSource
	processor DocumentProcessor
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(queue IngestJobQueue, docs DocumentSource, processor DocumentProcessor) *IngestWorker {
	return &IngestWorker{
		queue:     queue,
		docs:      docs,
		processor: processor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.queue.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingest jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)

	doc, err := w.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if _, err := w.processor.Reprocess(ctx, doc); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.queue.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic. A missing document
// cannot succeed on retry, so it fails immediately.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.queue.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	terminal := job.Retries+1 >= MaxRetries || domain.ErrorCode(jobErr) == domain.ErrCodeNotFound

	if terminal {
		log.Printf("Job %s will not be retried, marking as failed", job.ID)
		errMsg := jobErr.Error()
		if err := w.queue.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.queue.UpdateStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

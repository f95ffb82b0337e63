//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/service"
	"github.com/cognibase/cognibase/internal/testutil"
)

func createJobFixture(ctx context.Context, t *testing.T, docs *DocumentRepository, jobs *IngestJobRepository) *domain.IngestJob {
	t.Helper()

	doc := newTestDocument(uuid.NewString())
	require.NoError(t, docs.Create(ctx, doc))

	job := &domain.IngestJob{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     domain.IngestJobStatusPending,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, jobs.Create(ctx, job))
	return job
}

func TestIngestJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	job := createJobFixture(ctx, t, docs, jobs)

	retrieved, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retrieved.ID)
	assert.Equal(t, job.DocumentID, retrieved.DocumentID)
	assert.Equal(t, domain.IngestJobStatusPending, retrieved.Status)
	assert.Zero(t, retrieved.Retries)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestIngestJobRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobs := NewIngestJobRepository(pool)

	_, err := jobs.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIngestJobNotFound)
}

func TestIngestJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	first := createJobFixture(ctx, t, docs, jobs)
	second := createJobFixture(ctx, t, docs, jobs)

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	for _, job := range claimed {
		assert.Equal(t, domain.IngestJobStatusProcessing, job.Status)
	}

	// A second claim finds nothing pending
	claimed, err = jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	_ = first
	_ = second
}

func TestIngestJobRepository_ClaimPending_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	for i := 0; i < 3; i++ {
		createJobFixture(ctx, t, docs, jobs)
	}

	claimed, err := jobs.ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)

	claimed, err = jobs.ClaimPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestIngestJobRepository_UpdateStatus_SetsProcessedAt(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	job := createJobFixture(ctx, t, docs, jobs)

	require.NoError(t, jobs.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""))

	retrieved, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestJobStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.ProcessedAt)
	assert.WithinDuration(t, time.Now().UTC(), *retrieved.ProcessedAt, time.Minute)
}

func TestIngestJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	job := createJobFixture(ctx, t, docs, jobs)

	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))

	retrieved, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, retrieved.Retries)

	assert.ErrorIs(t, jobs.IncrementRetries(ctx, "missing"), domain.ErrIngestJobNotFound)
}

func TestTxRunner_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	docs := NewDocumentRepository(pool)

	docID := uuid.NewString()
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, newTestDocument(docID)); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = docs.GetByID(ctx, docID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestTxRunner_CommitsDocumentAndJobTogether(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	docs := NewDocumentRepository(pool)
	jobs := NewIngestJobRepository(pool)

	docID := uuid.NewString()
	jobID := uuid.NewString()
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().Create(ctx, newTestDocument(docID)); err != nil {
			return err
		}
		return repos.IngestJobs().Create(ctx, &domain.IngestJob{
			ID:         jobID,
			DocumentID: docID,
			Status:     domain.IngestJobStatusPending,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		})
	})
	require.NoError(t, err)

	_, err = docs.GetByID(ctx, docID)
	require.NoError(t, err)

	job, err := jobs.GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, docID, job.DocumentID)
}

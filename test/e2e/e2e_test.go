//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentData struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
}

type ingestData struct {
	DocumentID string   `json:"document_id"`
	RecordIDs  []string `json:"record_ids"`
}

type enqueueData struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type askData struct {
	Answer   string `json:"answer"`
	Grounded bool   `json:"grounded"`
	Sources  []struct {
		RecordID   string  `json:"record_id"`
		DocumentID string  `json:"document_id"`
		ChunkIndex int     `json:"chunk_index"`
		Score      float32 `json:"score"`
	} `json:"sources"`
}

func TestE2E_FullPipeline(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health check", func(t *testing.T) {
		resp, status, err := env.Get("/health")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp.Error)
	})

	t.Run("sync ingest and retrieve", func(t *testing.T) {
		resp, status, err := env.Post("/documents", map[string]interface{}{
			"id":   "doc-paris",
			"text": "Paris is the capital of France. The city is known for the Eiffel Tower and the Louvre museum.",
			"metadata": map[string]interface{}{
				"category": "geography",
			},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, status, "error: %s", resp.Error)

		var ingested ingestData
		require.NoError(t, json.Unmarshal(resp.Data, &ingested))
		assert.Equal(t, "doc-paris", ingested.DocumentID)
		require.NotEmpty(t, ingested.RecordIDs)
		assert.Equal(t, "doc-paris:0000", ingested.RecordIDs[0])

		// Document lands in ready state
		resp, status, err = env.Get("/documents/doc-paris")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var doc documentData
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.Equal(t, "ready", doc.Status)
		assert.Equal(t, "geography", doc.Metadata["category"])
	})

	t.Run("ask returns grounded answer with sources", func(t *testing.T) {
		resp, status, err := env.Post("/ask", map[string]interface{}{
			"question": "What is the capital of France?",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, "error: %s", resp.Error)

		var answer askData
		require.NoError(t, json.Unmarshal(resp.Data, &answer))
		assert.True(t, answer.Grounded)
		assert.NotEmpty(t, answer.Answer)
		require.NotEmpty(t, answer.Sources)
		assert.Equal(t, "doc-paris", answer.Sources[0].DocumentID)
	})

	t.Run("ask with non-matching filter is ungrounded", func(t *testing.T) {
		resp, status, err := env.Post("/ask", map[string]interface{}{
			"question": "What is the capital of France?",
			"filter": map[string]interface{}{
				"category": "biology",
			},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var answer askData
		require.NoError(t, json.Unmarshal(resp.Data, &answer))
		assert.False(t, answer.Grounded)
		assert.Empty(t, answer.Sources)
	})

	t.Run("reingest replaces records", func(t *testing.T) {
		resp, status, err := env.Post("/documents", map[string]interface{}{
			"id":   "doc-paris",
			"text": "Paris hosts the national government of France.",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, status, "error: %s", resp.Error)

		var ingested ingestData
		require.NoError(t, json.Unmarshal(resp.Data, &ingested))

		var count int
		require.NoError(t, env.Pool.QueryRow(env.Ctx,
			"SELECT COUNT(*) FROM records WHERE document_id = $1", "doc-paris").Scan(&count))
		assert.Equal(t, len(ingested.RecordIDs), count)
	})

	t.Run("list documents", func(t *testing.T) {
		resp, status, err := env.Get("/documents?limit=10")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var page struct {
			Items   []documentData `json:"items"`
			HasMore bool           `json:"has_more"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.NotEmpty(t, page.Items)
	})

	t.Run("async ingest processed by worker", func(t *testing.T) {
		resp, status, err := env.Post("/documents", map[string]interface{}{
			"id":    "doc-nile",
			"text":  "The Nile is the longest river in Africa, flowing north through Egypt.",
			"async": true,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, status, "error: %s", resp.Error)

		var enqueued enqueueData
		require.NoError(t, json.Unmarshal(resp.Data, &enqueued))
		assert.Equal(t, "doc-nile", enqueued.DocumentID)
		assert.Equal(t, "pending", enqueued.Status)
		assert.NotEmpty(t, enqueued.JobID)

		require.Eventually(t, func() bool {
			resp, status, err := env.Get("/documents/doc-nile")
			if err != nil || status != http.StatusOK {
				return false
			}
			var doc documentData
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return false
			}
			return doc.Status == "ready"
		}, 15*time.Second, 250*time.Millisecond, "worker did not process the job")

		// The new document is retrievable
		askResp, status, err := env.Post("/ask", map[string]interface{}{
			"question": "Which river flows through Egypt?",
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)

		var answer askData
		require.NoError(t, json.Unmarshal(askResp.Data, &answer))
		require.True(t, answer.Grounded)
		assert.Equal(t, "doc-nile", answer.Sources[0].DocumentID)
	})
}

func TestE2E_ErrorHandling(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("missing document returns 404", func(t *testing.T) {
		resp, status, err := env.Get("/documents/missing")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		resp, status, err := env.Post("/documents", map[string]interface{}{
			"id":   "doc-empty",
			"text": "   ",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("empty question rejected", func(t *testing.T) {
		resp, status, err := env.Post("/ask", map[string]interface{}{
			"question": "",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_QUERY", resp.Code)
	})

	t.Run("nested metadata rejected", func(t *testing.T) {
		_, status, err := env.Post("/documents", map[string]interface{}{
			"id":   "doc-nested",
			"text": "content",
			"metadata": map[string]interface{}{
				"nested": map[string]interface{}{"a": 1},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("oversized limit rejected", func(t *testing.T) {
		_, status, err := env.Get(fmt.Sprintf("/documents?limit=%d", 1000))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

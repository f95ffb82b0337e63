package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cognibase/cognibase/internal/api"
	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/pagination"
	"github.com/cognibase/cognibase/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
}

type EnqueueService interface {
	Enqueue(ctx context.Context, input service.IngestInput) (*domain.IngestJob, error)
}

type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error)
}

// DocumentHandler serves document ingestion and status endpoints. The enqueue
// service is optional; without it async submissions are rejected.
type DocumentHandler struct {
	ingest  IngestService
	enqueue EnqueueService
	docs    DocumentStore
}

func NewDocumentHandler(ingest IngestService, enqueue EnqueueService, docs DocumentStore) *DocumentHandler {
	return &DocumentHandler{
		ingest:  ingest,
		enqueue: enqueue,
		docs:    docs,
	}
}

type IngestDocumentRequest struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Async    bool                   `json:"async"`
}

type IngestDocumentResponse struct {
	DocumentID string   `json:"document_id"`
	RecordIDs  []string `json:"record_ids"`
}

type EnqueueDocumentResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type DocumentResponse struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	metadata, err := domain.MetadataFromJSON(req.Metadata)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	input := service.IngestInput{
		DocumentID: req.ID,
		Text:       req.Text,
		Metadata:   metadata,
	}

	if req.Async {
		if h.enqueue == nil {
			api.Error(w, http.StatusBadRequest, "async ingestion requires a database")
			return
		}
		job, err := h.enqueue.Enqueue(r.Context(), input)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusAccepted, EnqueueDocumentResponse{
			JobID:      job.ID,
			DocumentID: job.DocumentID,
			Status:     string(job.Status),
		})
		return
	}

	result, err := h.ingest.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestDocumentResponse{
		DocumentID: result.DocumentID,
		RecordIDs:  result.RecordIDs,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.docs.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, toDocumentResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	page, err := h.docs.ListWithCursor(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]DocumentResponse, 0, len(page.Items))
	for _, doc := range page.Items {
		items = append(items, toDocumentResponse(doc))
	}

	api.Success(w, http.StatusOK, pagination.PageResult[DocumentResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func toDocumentResponse(doc *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Status:    string(doc.Status),
		Error:     doc.Error,
		Metadata:  doc.Metadata.ToJSON(),
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

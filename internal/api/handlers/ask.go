package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cognibase/cognibase/internal/api"
	"github.com/cognibase/cognibase/internal/domain"
	"github.com/cognibase/cognibase/internal/service"
)

type AskService interface {
	Ask(ctx context.Context, input service.AskInput) (*domain.Answer, error)
}

// AskHandler serves the question answering endpoint.
type AskHandler struct {
	svc AskService
}

func NewAskHandler(svc AskService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Question string                 `json:"question"`
	TopK     int                    `json:"top_k"`
	MinScore *float32               `json:"min_score"`
	Filter   map[string]interface{} `json:"filter"`
}

type SourceResponse struct {
	RecordID   string  `json:"record_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Truncated  bool    `json:"truncated,omitempty"`
}

type AskResponse struct {
	Answer   string           `json:"answer"`
	Grounded bool             `json:"grounded"`
	Sources  []SourceResponse `json:"sources"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TopK < 0 {
		api.Error(w, http.StatusBadRequest, "top_k must be at least 1")
		return
	}

	filter, err := domain.MetadataFromJSON(req.Filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	answer, err := h.svc.Ask(r.Context(), service.AskInput{
		Question: req.Question,
		TopK:     req.TopK,
		MinScore: req.MinScore,
		Filter:   filter,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make([]SourceResponse, 0, len(answer.Provenance))
	for _, src := range answer.Provenance {
		sources = append(sources, SourceResponse{
			RecordID:   src.RecordID,
			DocumentID: src.DocumentID,
			ChunkIndex: src.Index,
			Text:       src.Text,
			Score:      src.Score,
			Truncated:  src.Truncated,
		})
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:   answer.Text,
		Grounded: answer.Grounded,
		Sources:  sources,
	})
}

package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	Question string                 `json:"question"`
	TopK     int                    `json:"top_k,omitempty"`
	MinScore *float32               `json:"min_score,omitempty"`
	Filter   map[string]interface{} `json:"filter,omitempty"`
}

// AskSource represents a passage the answer was grounded on.
type AskSource struct {
	RecordID   string  `json:"record_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// AskResponse represents the ask API response.
type AskResponse struct {
	Answer   string      `json:"answer"`
	Grounded bool        `json:"grounded"`
	Sources  []AskSource `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		topK     int
		minScore float32
		filters  []string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long:  "Asks a question against the ingested documents and prints the grounded answer with its sources.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], topK, minScore, filters, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (server default if 0)")
	cmd.Flags().Float32Var(&minScore, "min-score", -1, "Minimum similarity score for retrieved passages")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter as key=value (repeatable)")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, topK int, minScore float32, filters []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd.Root())
	if err != nil {
		return err
	}

	filter, err := parseMetadataPairs(filters)
	if err != nil {
		return err
	}

	req := AskRequest{
		Question: question,
		TopK:     topK,
		Filter:   filter,
	}
	if minScore >= 0 {
		req.MinScore = &minScore
	}

	resp, err := api.Post("/ask", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)

	if !askResp.Grounded {
		fmt.Println("\n(no matching passages; answer is not grounded)")
		return nil
	}

	if len(askResp.Sources) > 0 {
		fmt.Printf("\nSources:\n")
		for i, src := range askResp.Sources {
			marker := ""
			if src.Truncated {
				marker = " (truncated)"
			}
			fmt.Printf("%d. %s (%.2f)%s\n", i+1, src.RecordID, src.Score, marker)
		}
	}

	return nil
}

// parseMetadataPairs converts repeated key=value flags into a filter map.
func parseMetadataPairs(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", pair)
		}
		out[key] = value
	}
	return out, nil
}

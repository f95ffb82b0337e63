package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// IngestRequest represents the document ingestion request.
type IngestRequest struct {
	ID       string                 `json:"id,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Async    bool                   `json:"async,omitempty"`
}

// IngestResponse represents a synchronous ingestion response.
type IngestResponse struct {
	DocumentID string   `json:"document_id"`
	RecordIDs  []string `json:"record_ids"`
}

// EnqueueResponse represents an async ingestion response.
type EnqueueResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var (
		docID    string
		metadata []string
		async    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a document",
		Long:  "Ingests a text document from a file or stdin, chunking and embedding it for retrieval.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runIngest(cmd, path, docID, metadata, async, outputJSON)
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document ID (generated if empty; reusing an ID replaces the document)")
	cmd.Flags().StringArrayVarP(&metadata, "metadata", "m", nil, "Metadata as key=value (repeatable)")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue for background processing instead of waiting")

	return cmd
}

func runIngest(cmd *cobra.Command, path, docID string, metadata []string, async, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd.Root())
	if err != nil {
		return err
	}

	text, err := readDocumentText(path)
	if err != nil {
		return err
	}

	meta, err := parseMetadataPairs(metadata)
	if err != nil {
		return err
	}

	resp, err := api.Post("/documents", IngestRequest{
		ID:       docID,
		Text:     text,
		Metadata: meta,
		Async:    async,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if async {
		var enqueueResp EnqueueResponse
		if err := json.Unmarshal(resp.Data, &enqueueResp); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		if outputJSON {
			output, _ := json.MarshalIndent(enqueueResp, "", "  ")
			fmt.Println(string(output))
		} else {
			fmt.Printf("Enqueued document %s (job %s)\n", enqueueResp.DocumentID, enqueueResp.JobID)
			fmt.Printf("Check progress with: cognibase get %s\n", enqueueResp.DocumentID)
		}
		return nil
	}

	var ingestResp IngestResponse
	if err := json.Unmarshal(resp.Data, &ingestResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(ingestResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Ingested document %s (%d passages)\n", ingestResp.DocumentID, len(ingestResp.RecordIDs))
	}

	return nil
}

func readDocumentText(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

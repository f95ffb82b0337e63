package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Document represents a document status record from the API.
type Document struct {
	ID        string                 `json:"id"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <document_id>",
		Short:   "Get a document by ID",
		Long:    "Retrieves a document's ingestion status and metadata by its ID.",
		Aliases: []string{"status"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, documentID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd.Root())
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/documents/%s", documentID))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("ID: %s\n", doc.ID)
		fmt.Printf("Status: %s\n", doc.Status)
		if doc.Error != "" {
			fmt.Printf("Error: %s\n", doc.Error)
		}
		if len(doc.Metadata) > 0 {
			fmt.Println("Metadata:")
			for key, value := range doc.Metadata {
				fmt.Printf("  %s: %v\n", key, value)
			}
		}
		fmt.Printf("Created: %s\n", doc.CreatedAt)
		fmt.Printf("Updated: %s\n", doc.UpdatedAt)
	}

	return nil
}

package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentPage represents a page of documents from the API.
type DocumentPage struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Long:  "Lists ingested documents with their status, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of documents")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(cmd *cobra.Command, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd.Root())
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/documents?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var page DocumentPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse documents: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	for _, doc := range page.Items {
		line := fmt.Sprintf("%s  %-10s  %s", doc.ID, doc.Status, doc.UpdatedAt)
		if doc.Error != "" {
			line += "  " + doc.Error
		}
		fmt.Println(line)
	}

	if page.HasMore && page.Cursor != "" {
		fmt.Printf("\nMore documents available. Use --cursor %s\n", page.Cursor)
	}

	return nil
}

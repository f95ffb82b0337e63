package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognibase/cognibase/internal/cli"
	"github.com/cognibase/cognibase/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "cognibase",
		Short: "Cognibase CLI - Document ingestion and question answering",
		Long: `Cognibase CLI provides commands to ingest documents and ask questions against them.

Environment variables:
  COGNIBASE_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.ListCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognibase/cognibase/internal/cli"
	"github.com/cognibase/cognibase/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cognibased",
		Short: "Cognibase daemon",
		Long:  "Cognibase daemon for running the retrieval augmented question answering API server",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

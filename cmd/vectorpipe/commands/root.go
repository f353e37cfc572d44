// Package commands implements the vectorpipe CLI.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vectorpipe",
		Short: "Document ingestion and similarity search pipeline",
		Long: `vectorpipe watches an object store for documents, chunks them into
paragraphs, embeds each chunk, and indexes the vectors for similarity
search.

Configuration comes from VECTORPIPE_* environment variables; a .env file
in the working directory is loaded automatically.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env is fine; the environment may be set directly
			_ = godotenv.Load()
		},
	}

	root.AddCommand(
		NewWatchCmd(),
		NewConsumeCmd(),
		NewServeCmd(),
		NewMCPCmd(),
		NewUploadCmd(),
		NewDeadletterCmd(),
		NewRetryDocCmd(),
		NewVersionCmd(),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

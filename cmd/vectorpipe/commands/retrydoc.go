package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRetryDocCmd creates the retry-doc command.
func NewRetryDocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-doc <doc-id>...",
		Short: "Reset failed documents for re-ingestion",
		Long: `Move failed documents back to the discovered state so the next watcher
cycle reprocesses them. Only documents in the failed state are eligible;
use "vectorpipe mcp" or the HTTP API to inspect document status first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, docID := range args {
				if err := store.ResetFailedDocument(ctx, docID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", docID)
			}
			return nil
		},
	}
}

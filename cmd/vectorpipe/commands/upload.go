package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vectorpipe/vectorpipe/internal/config"
	"github.com/vectorpipe/vectorpipe/internal/objstore"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Push local text files into the object store",
		Long: `Copy local text files into the watched object store under fresh UUID
keys. The next watcher cycle discovers and ingests them.

Examples:
  vectorpipe upload notes.txt
  vectorpipe upload --prefix inbox/ docs/*.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := objstore.NewFSStore(cfg.StoreDir)
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				key := prefix + uuid.NewString() + filepath.Ext(path)
				if err := store.Put(cmd.Context(), key, data); err != nil {
					return fmt.Errorf("uploading %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix for uploaded objects")
	return cmd
}

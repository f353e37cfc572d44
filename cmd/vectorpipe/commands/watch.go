package commands

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/vectorpipe/vectorpipe/internal/chunker"
	"github.com/vectorpipe/vectorpipe/internal/objstore"
	"github.com/vectorpipe/vectorpipe/internal/publisher"
	"github.com/vectorpipe/vectorpipe/internal/watcher"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the object store and publish document chunks",
		Long: `Run the ingestion watcher: poll the object store for documents, chunk
new ones into paragraphs, and durably publish the chunks onto the work
queue for embedding.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			docs, err := objstore.NewFSStore(cfg.StoreDir)
			if err != nil {
				return err
			}

			w := watcher.New(docs, store, chunker.New(), publisher.New(store, cfg.MaxItemBytes), watcher.Config{
				PollInterval:    cfg.PollInterval,
				StaleClaimAfter: cfg.StaleClaimAfter,
				Prefix:          cfg.StorePrefix,
			})

			if once {
				return w.Cycle(ctx)
			}

			log.Printf("watching %s every %s", cfg.StoreDir, cfg.PollInterval)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single polling cycle and exit")
	return cmd
}

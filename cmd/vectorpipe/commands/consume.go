package commands

import (
	"context"
	"errors"
	"log"

	"github.com/spf13/cobra"

	"github.com/vectorpipe/vectorpipe/internal/consumer"
	"github.com/vectorpipe/vectorpipe/internal/embedder"
	"github.com/vectorpipe/vectorpipe/internal/queue"
)

// NewConsumeCmd creates the consume command.
func NewConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run embedding workers over the work queue",
		Long: `Run the embedding stage: lease chunks from the work queue, embed their
text, upsert the vectors into the index, and acknowledge. Failed items
are retried with backoff and eventually dead-lettered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			cfg, store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			emb, err := buildEmbedder()
			if err != nil {
				return err
			}
			defer emb.Close()

			index, err := buildIndex(cfg, store)
			if err != nil {
				return err
			}

			q := queue.New(store, queue.Config{
				MaxAttempts:   cfg.QueueMaxAttempts,
				BaseDelay:     cfg.QueueBaseDelay,
				MaxDelay:      cfg.QueueMaxDelay,
				LeaseDuration: cfg.QueueLease,
			})

			c := consumer.New(q, index, emb, embedder.NewCache(0), store, consumer.Config{
				Workers:   cfg.Workers,
				EmbedRate: cfg.EmbedRate,
			})

			log.Printf("consuming with %d workers, model %s, index %s", cfg.Workers, emb.Model(), cfg.IndexBackend)
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vectorpipe/vectorpipe/internal/query"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the similarity search HTTP API",
		Long: `Run the query service: POST /search answers similarity queries over the
vector index, GET /healthz reports readiness.`,
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
			if err := index.Ensure(ctx, emb.Dimension()); err != nil {
				return err
			}

			svc := query.New(emb, index, query.Config{
				EmbedTimeout:       cfg.EmbedTimeout,
				SearchTimeout:      cfg.SearchTimeout,
				CacheSize:          cfg.CacheSize,
				CacheTTL:           cfg.CacheTTL,
				AllowModelMismatch: cfg.AllowModelMismatch,
			})

			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           query.NewServer(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Printf("serving search API on %s, model %s", cfg.HTTPAddr, emb.Model())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

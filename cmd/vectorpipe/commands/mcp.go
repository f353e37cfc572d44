package commands

import (
	"github.com/spf13/cobra"

	"github.com/vectorpipe/vectorpipe/internal/mcp"
	"github.com/vectorpipe/vectorpipe/internal/query"
)

// NewMCPCmd creates the mcp command.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search and status tools over MCP stdio",
		Long: `Run a Model Context Protocol server on stdio exposing the
search_documents and pipeline_status tools, for use by MCP-capable
assistants.`,
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

			svc := query.New(emb, index, query.Config{
				EmbedTimeout:       cfg.EmbedTimeout,
				SearchTimeout:      cfg.SearchTimeout,
				CacheSize:          cfg.CacheSize,
				CacheTTL:           cfg.CacheTTL,
				AllowModelMismatch: cfg.AllowModelMismatch,
			})

			return mcp.NewServer(svc, store, index).Serve(ctx)
		},
	}
}

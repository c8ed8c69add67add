package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/pkg/rag"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	verify bool
	plain  bool
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and persist the document index",
		Long: `Load every supported file under the document folder, split it into
overlapping chunks, embed the chunks and persist the index.

The previous snapshot stays readable until the new one is published.`,
		Example: `  docrag index
  docrag index --docs ./handbook --index ./handbook_index
  docrag index --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Reload the persisted index and compare it to the built one")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no line redraws)")

	cmd.AddCommand(newIndexInfoCmd(root))

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts indexOptions) error {
	cfg := root.cfg
	if opts.verify {
		cfg.Index.Verify = true
	}

	p, err := newPipeline(cmd, root,
		rag.WithRenderer(progressRenderer(cmd.ErrOrStderr(), opts.plain)),
		rag.RetrievalOnly())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	stats, err := p.Rebuild(ctx)
	if err != nil {
		return err
	}

	logIndexStats(stats)
	return nil
}

func logIndexStats(stats *index.RunnerResult) {
	slog.Info("index_command_done",
		slog.Int("files", stats.Files),
		slog.Int("chunks", stats.Chunks),
		slog.Bool("verified", stats.Verified),
		slog.Int64("duration_ms", stats.Duration.Milliseconds()))
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/answer"
	"github.com/Aman-CERP/docrag/internal/chunk"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/pkg/rag"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK     int
	strategy string
	format   string // "text", "json"
	rebuild  bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the chunks retrieved for a query",
		Long: `Retrieve the most relevant chunks for a query without generating an
answer. Useful for checking what ask would ground its answer on.

No generation provider is contacted.`,
		Example: `  docrag search "refund policy"
  docrag search "sky color" --strategy similarity -k 2
  docrag search "shipping" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Retrieval strategy: similarity or diversity (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild and persist the index before searching")

	return cmd
}

// searchResult is the JSON shape of one retrieved chunk.
type searchResult struct {
	Rank     int               `json:"rank"`
	Source   string            `json:"source"`
	Position int               `json:"position"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return derrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	cfg := root.cfg
	if cmd.Flags().Changed("rebuild") {
		cfg.Index.Rebuild = opts.rebuild
	}
	strategy, k, err := retrievalFlags(cfg.Retrieval.Strategy, cfg.Retrieval.TopK, opts.strategy, opts.topK)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd, root, rag.RetrievalOnly())
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if err := p.Prepare(ctx); err != nil {
		return err
	}

	passages, err := p.RetrieveWith(ctx, query, strategy, k)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.String("strategy", string(strategy)),
		slog.Int("results", len(passages)))

	if opts.format == "json" {
		results := make([]searchResult, 0, len(passages))
		for i, ps := range passages {
			results = append(results, searchResult{
				Rank:     i + 1,
				Source:   ps.SourceID,
				Position: ps.Position,
				Score:    ps.Score,
				Text:     ps.Text,
				Metadata: ps.Metadata,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":    query,
			"strategy": strategy,
			"results":  results,
		})
	}

	out := output.New(cmd.OutOrStdout())
	for i, ps := range passages {
		loc := answer.Location(chunk.Chunk{SourceID: ps.SourceID, Metadata: ps.Metadata})
		out.Result(i+1, fmt.Sprintf("%s#%d", loc, ps.Position), ps.Score, ps.Text)
	}
	return nil
}

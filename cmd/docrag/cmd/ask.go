package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/answer"
	"github.com/Aman-CERP/docrag/internal/chunk"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/pkg/rag"
)

// askOptions holds CLI flags for ask.
type askOptions struct {
	rebuild  bool
	verify   bool
	retries  int
	strategy string
	topK     int
	sources  bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Long: `Answer a question using only the indexed documents.

The index is loaded from the index directory, or rebuilt first when
--rebuild is given or index.rebuild is set. A missing index is an error;
there is no silent rebuild.`,
		Example: `  docrag ask "What color is the sky?"
  docrag ask --rebuild "What is the refund policy?"
  docrag ask --strategy similarity -k 2 "Who wrote the report?"
  docrag ask --retries 3 "Summarize the shipping terms"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild and persist the index before answering")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Reload the rebuilt index and compare it before answering")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retry answer generation on transient failures")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Retrieval strategy: similarity or diversity (default from config)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().BoolVar(&opts.sources, "sources", true, "List the sources used after the answer")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, root *rootOptions, question string, opts askOptions) error {
	cfg := root.cfg
	if cmd.Flags().Changed("rebuild") {
		cfg.Index.Rebuild = opts.rebuild
	}
	if opts.verify {
		cfg.Index.Verify = true
	}
	strategy, k, err := retrievalFlags(cfg.Retrieval.Strategy, cfg.Retrieval.TopK, opts.strategy, opts.topK)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd, root)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	start := time.Now()
	if err := p.Prepare(ctx); err != nil {
		return err
	}

	passages, err := p.RetrieveWith(ctx, question, strategy, k)
	if err != nil {
		return err
	}

	retry := derrors.DefaultRetryConfig()
	retry.MaxRetries = max(0, opts.retries)
	text, err := derrors.RetryWithResult(ctx, retry, func() (string, error) {
		return p.Compose(ctx, question, passages)
	})
	if err != nil {
		return err
	}

	slog.Info("question_answered",
		slog.Int("passages", len(passages)),
		slog.String("strategy", string(strategy)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	var sources []string
	if opts.sources {
		sources = sourceHeaders(passages)
	}
	output.New(cmd.OutOrStdout()).Answer(text, sources)
	return nil
}

// retrievalFlags resolves strategy and k from config defaults and flags.
func retrievalFlags(cfgStrategy string, cfgK int, flagStrategy string, flagK int) (search.Strategy, int, error) {
	name := cfgStrategy
	if flagStrategy != "" {
		name = flagStrategy
	}
	strategy, ok := search.ParseStrategy(name)
	if !ok {
		return "", 0, derrors.ValidationError(fmt.Sprintf("unknown strategy %q", name), nil).
			WithSuggestion("Use --strategy similarity or --strategy diversity")
	}
	k := cfgK
	if flagK != 0 {
		k = flagK
	}
	return strategy, k, nil
}

// sourceHeaders lists each distinct source location once, in rank order.
func sourceHeaders(passages []rag.Passage) []string {
	seen := make(map[string]bool, len(passages))
	var out []string
	for _, ps := range passages {
		h := answer.Location(chunk.Chunk{SourceID: ps.SourceID, Metadata: ps.Metadata})
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

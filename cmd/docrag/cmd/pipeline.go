package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/ui"
	"github.com/Aman-CERP/docrag/pkg/rag"
)

// progressRenderer draws rebuild progress on stderr so stdout carries only
// results.
func progressRenderer(w io.Writer, plain bool) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(w,
		ui.WithForcePlain(plain),
		ui.WithNoColor(ui.DetectNoColor())))
}

// newPipeline builds a pipeline from the loaded configuration. Options in
// extra are applied last.
func newPipeline(cmd *cobra.Command, opts *rootOptions, extra ...rag.Option) (*rag.Pipeline, error) {
	base := []rag.Option{
		rag.WithConfig(opts.cfg),
		rag.WithLogger(opts.logger),
		rag.WithRenderer(progressRenderer(cmd.ErrOrStderr(), false)),
	}
	return rag.New(append(base, extra...)...)
}

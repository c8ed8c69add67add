package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/output"
	"github.com/Aman-CERP/docrag/internal/store"
)

func newIndexInfoCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the persisted index manifest",
		Long: `Display what the published index snapshot contains: chunk and source
counts, embedding model and dimensions, similarity metric and the
generation files.

This command helps you:
- Check which model the current index uses
- Debug dimension mismatch errors
- Verify the index was rebuilt after changing documents`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexInfo(cmd, root.cfg.Paths.IndexLocation, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runIndexInfo(cmd *cobra.Command, location string, jsonOutput bool) error {
	m, err := store.ReadManifest(location)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(location)
	if err != nil {
		abs = location
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"location": abs,
			"manifest": m,
		})
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", "Index Information")
	out.KeyValue("Location", abs)
	out.KeyValue("Generation", m.Generation)
	out.KeyValue("Created", fmt.Sprintf("%s (%s)", m.CreatedAt.Local().Format(time.DateTime), humanize.Time(m.CreatedAt)))
	out.KeyValue("Chunks", m.Count)
	out.KeyValue("Sources", m.Sources)
	out.KeyValue("Model", m.Model)
	out.KeyValue("Dimensions", m.Dimensions)
	out.KeyValue("Metric", m.Metric)
	out.KeyValue("Graph", fmt.Sprintf("M=%d ef_search=%d", m.Graph.M, m.Graph.EfSearch))
	out.KeyValue("Vectors", fmt.Sprintf("%s (%s)", m.Vectors.Name, humanize.IBytes(uint64(m.Vectors.Size))))
	out.KeyValue("Records", fmt.Sprintf("%s (%s)", m.Records.Name, humanize.IBytes(uint64(m.Records.Size))))
	return nil
}

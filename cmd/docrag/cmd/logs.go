package cmd

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/ui"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View docrag logs",
		Long: `View and tail the docrag log file.

By default, shows the last 50 lines. Use -f to follow new entries in
real-time (like 'tail -f').`,
		Example: `  docrag logs                    # Show last 50 lines
  docrag logs -n 100             # Show last 100 lines
  docrag logs -f                 # Follow logs in real-time
  docrag logs --level error      # Show only error logs
  docrag logs --filter "index_"  # Filter by pattern`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return derrors.ValidationError(err.Error(), nil)
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return derrors.ValidationError("invalid filter pattern", err).
				WithDetail("filter", opts.filter)
		}
	}

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	noColor := opts.noColor || ui.DetectNoColor() || !ui.IsTTY(stdout)
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: noColor,
	}, stdout)

	_, _ = fmt.Fprintf(stderr, "Log file: %s\n", path)
	if !opts.follow {
		_, _ = fmt.Fprintln(stderr, "---")
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return derrors.Wrap(derrors.ErrCodeInternal, err)
		}
		viewer.Print(entries)
		return nil
	}

	_, _ = fmt.Fprintln(stderr, "Following... (Ctrl+C to stop)")
	_, _ = fmt.Fprintln(stderr, "---")
	return followLogs(ctx, viewer, path, stdout, stderr)
}

func followLogs(ctx context.Context, viewer *logging.Viewer, path string, stdout, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(stdout, viewer.FormatEntry(entry))
		case err := <-errCh:
			if err != nil {
				return derrors.Wrap(derrors.ErrCodeInternal, err)
			}
			return nil
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "\n---")
			_, _ = fmt.Fprintln(stderr, "Stopped.")
			return nil
		}
	}
}

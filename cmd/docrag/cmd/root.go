// Package cmd provides the CLI commands for docrag.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/config"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// envFiles are loaded at startup when present. Variables already set in
// the environment win.
var envFiles = []string{".env", "env/.env"}

// skipSetup marks commands that run without configuration or logging.
const skipSetup = "docrag/skip-setup"

// rootOptions holds global flags and the state prepared for subcommands.
type rootOptions struct {
	debug      bool
	configPath string
	docsPath   string
	indexPath  string

	cfg            *config.Config
	logger         *slog.Logger
	prevLogger     *slog.Logger
	loggingCleanup func()
}

// NewRootCmd creates the root command for the docrag CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docrag",
		Short: "Answer questions from your documents",
		Long: `docrag indexes a folder of .txt, .md, .pdf and .csv files and answers
questions from them with a language model, citing the source of each fact.

Build the index once, then ask:
  docrag index
  docrag ask "What is the refund policy?"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.SetVersionTemplate("docrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file applied after user and project config")
	cmd.PersistentFlags().StringVar(&opts.docsPath, "docs", "", "Document folder (overrides config and DOCRAG_DOCS_PATH)")
	cmd.PersistentFlags().StringVar(&opts.indexPath, "index", "", "Index directory (overrides config and DOCRAG_INDEX_PATH)")

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads .env files and configuration, then starts file logging.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if cmd.Annotations[skipSetup] == "true" {
		return nil
	}
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return derrors.ConfigError("failed to read "+name, err)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return derrors.InternalError("failed to resolve working directory", err)
	}
	cfg, err := config.LoadFrom(cwd, o.configPath)
	if err != nil {
		return err
	}
	if o.docsPath != "" {
		cfg.Paths.DocumentRoot = o.docsPath
	}
	if o.indexPath != "" {
		cfg.Paths.IndexLocation = o.indexPath
	}
	o.cfg = cfg

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}
	if o.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// The command still runs without a log file.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: logging disabled: %v\n", err)
		logger, cleanup = logging.Discard(), func() {}
	}
	o.logger, o.loggingCleanup = logger, cleanup
	o.prevLogger = slog.Default()
	slog.SetDefault(logger)

	logger.Debug("command_started",
		slog.String("command", cmd.CommandPath()),
		slog.String("docs_path", cfg.Paths.DocumentRoot),
		slog.String("index_path", cfg.Paths.IndexLocation),
		slog.String("version", version.Version))
	return nil
}

func (o *rootOptions) teardown() {
	if o.prevLogger != nil {
		slog.SetDefault(o.prevLogger)
		o.prevLogger = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &rootOptions{}
	defer opts.teardown()
	return run(ctx, newRootCmd(opts), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	slog.Error("command_failed", derrors.LogAttr(err))
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(stderr, "Interrupted.")
		return 130
	}
	_, _ = fmt.Fprint(stderr, derrors.FormatForCLI(err))
	return 1
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docrag/internal/config"
	derrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the user/global configuration file.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/docrag/config.yaml)
  3. Project config (.docrag.yaml)
  4. File given with --config
  5. Environment variables (DOCRAG_*)
  6. Command-line flags (--docs, --index)`,
		Example: `  # Create user config with the defaults
  docrag config init

  # Show effective configuration (merged from all sources)
  docrag config show

  # Print user config file path
  docrag config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create user configuration file",
		Long: `Create the user/global configuration file with the default settings.

The file is created at ~/.config/docrag/config.yaml
(or $XDG_CONFIG_HOME/docrag/config.yaml if XDG_CONFIG_HOME is set).
With --force an existing file is backed up first.`,
		Example: `  docrag config init
  docrag config init --force`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration (a backup is kept)")

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Show the effective configuration after merging all sources.`,
		Example: `  docrag config show
  docrag config show --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, root.cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print user config file path",
		Long:        `Print the path to the user configuration file.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Newline()
			out.Status("💡", "Use --force to overwrite it with the defaults (a backup is kept)")
			return nil
		}
		backup, err := config.BackupFile(configPath)
		if err != nil {
			return derrors.ConfigError("failed to back up existing config", err)
		}
		out.Statusf("📦", "Backup: %s", backup)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return derrors.ConfigError("failed to create config directory", err).
			WithDetail("path", filepath.Dir(configPath))
	}
	if err := config.NewConfig().WriteYAML(configPath); err != nil {
		return derrors.ConfigError("failed to write config file", err).
			WithDetail("path", configPath)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set docs_path and the embedding/generation providers")
	out.Status("", "  2. Run 'docrag config show' to verify")
	out.Status("", "  3. Run 'docrag index' to build the index")
	return nil
}

func runConfigShow(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return derrors.InternalError("failed to encode config", err)
	}
	return enc.Close()
}

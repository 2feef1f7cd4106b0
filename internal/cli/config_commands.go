package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fedesuarez16/opting-sub000/internal/cloud"
	"github.com/fedesuarez16/opting-sub000/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage opting configuration",
		Long: `Configuration management commands for opting.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Set one configuration value
  test  - Test the drive connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config path or the default one
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// prompt reads one trimmed line, falling back to def when it is empty
func prompt(r *bufio.Reader, w io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(w, "%s: ", label)
	}
	input, _ := r.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for opting.

The configuration will be saved to ~/.config/opting/config

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "opting Configuration Setup")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			reader := bufio.NewReader(cmd.InOrStdin())
			cfg := config.NewConfig()

			cfg.Drive.Backend = strings.ToLower(prompt(reader, out, "Drive backend (http, s3, azure)", cfg.Drive.Backend))
			switch cfg.Drive.Backend {
			case config.BackendS3:
				cfg.Drive.S3.Bucket = prompt(reader, out, "S3 bucket", "")
				cfg.Drive.S3.Region = prompt(reader, out, "S3 region", "us-east-1")
				cfg.Drive.S3.Endpoint = prompt(reader, out, "S3 endpoint (empty for AWS)", "")
				cfg.Drive.S3.RootPrefix = prompt(reader, out, "Root prefix", "")
			case config.BackendAzure:
				cfg.Drive.Azure.AccountURL = prompt(reader, out, "Storage account URL", "")
				cfg.Drive.Azure.Container = prompt(reader, out, "Container", "")
				cfg.Drive.Azure.SASToken = prompt(reader, out, "SAS token", "")
				cfg.Drive.Azure.RootPrefix = prompt(reader, out, "Root prefix", "")
			default:
				cfg.Drive.BaseURL = prompt(reader, out, "Drive API base URL", cfg.Drive.BaseURL)
				cfg.Drive.Token = prompt(reader, out, "Drive session token (optional)", "")
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Branch records (press Enter to skip)")
			fmt.Fprintln(out, "------------------------------------")
			cfg.Records.DatabaseURL = prompt(reader, out, "Postgres URL", "")
			if cfg.Records.DatabaseURL == "" {
				cfg.Records.SnapshotPath = prompt(reader, out, "Snapshot file", "")
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: opting config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/opting/config)
  2. Environment variables (` + config.EnvDriveToken + `, ` + config.EnvDatabaseURL + `, ` + config.EnvSessionToken + `)
  3. Command-line flags (--drive-token)

Secrets are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			text, err := cfg.Render()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, text)

			if path, err := configPath(); err == nil {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Configuration file: %s\n", path)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					fmt.Fprintln(out, "  (file does not exist - using defaults)")
				}
			}
			return nil
		},
	}

	return cmd
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <section.key> <value>",
		Short: "Set one configuration value",
		Long: `Set one configuration value and save the file.

Examples:
  opting config set drive.backend s3
  opting config set drive.s3.bucket compliance-docs
  opting config set records.database_url postgres://localhost/opting`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			// env overrides must not leak into the saved file
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s updated in %s\n", args[0], path)
			return nil
		},
	}
	return cmd
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the drive connection",
		Long: `Test the drive connection with current configuration.

Lists the root folders of the configured backend, bypassing caches.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Testing Drive Connection")
			fmt.Fprintln(out, "========================")
			fmt.Fprintln(out)

			return invoke(cmd.Context(), GetLogger(), func(src cloud.FolderSource, cfg *config.Config) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Drive.RequestTimeout())
				defer cancel()

				fmt.Fprintf(out, "Backend: %s\n", cfg.Drive.Backend)
				fmt.Fprintln(out, "Testing connection...")
				fmt.Fprintln(out)

				roots, err := src.ListRootFolders(ctx, cloud.FetchOptions{Force: true})
				if err != nil {
					GetLogger().Error().Err(err).Msg("Connection test failed")
					fmt.Fprintln(out, "✗ Connection FAILED")
					fmt.Fprintf(out, "  Error: %v\n", explain(err, cfg))
					return fmt.Errorf("connection test failed")
				}

				fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
				fmt.Fprintf(out, "  Root folders: %d\n", len(roots))
				return nil
			})
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: opting config init")
			}
			return nil
		},
	}

	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/kvcache/internal/config"
)

// defaultConfigFile is where config init writes when neither a path
// argument nor --config is given.
const defaultConfigFile = "kvcache.yaml"

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kvcache configuration",
	}

	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a), newConfigValidateCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Example: `  kvcache config init
  kvcache config init /etc/kvcache.yaml --force`,
		Args: cobra.MaximumNArgs(1),
		// Skip loading the file this command is about to create.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = defaultConfigFile
			}

			if !force {
				_, err := os.Stat(path)
				if err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
				if !os.IsNotExist(err) {
					return fmt.Errorf("cannot access config path %s: %w", path, err)
				}
			}

			if err := config.New().Save(path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			cmd.Printf("Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("encoding configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Loads defaults, the config file, KVCACHE_* environment variables and flags,
and checks the result. Errors are reported before any store is opened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The root pre-run has already loaded and validated a.cfg.
			cmd.Println("Configuration is valid")
			if verbose {
				printConfigDetails(cmd, a.cfg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show the settings in effect")

	return cmd
}

func printConfigDetails(cmd *cobra.Command, cfg *config.Config) {
	ttl := "none"
	if cfg.DefaultTTL > 0 {
		ttl = config.FormatDuration(time.Duration(cfg.DefaultTTL))
	}

	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Store: %s\n", cfg.Store)
	cmd.Printf("  Default TTL: %s\n", ttl)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Logging format: %s\n", cfg.Logging.Format)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	cmd.Printf("  Sweep batch size: %d\n", cfg.Sweep.BatchSize)
	cmd.Printf("  Sweep concurrency: %d\n", cfg.Sweep.Concurrency)
	cmd.Printf("  Metrics namespace: %s\n", cfg.Metrics.Namespace)
}

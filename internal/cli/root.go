package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rshade/kvcache/internal/config"
	"github.com/rshade/kvcache/internal/logging"
	"github.com/rshade/kvcache/pkg/kvcache"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg       *config.Config
	logResult *logging.LogPathResult
	cache     *kvcache.Cache
	metrics   *prometheus.Registry
	// exit is returned after cleanup so post-run hooks still run on a miss.
	exit *ExitError

	configPath  string
	store       string
	logLevel    string
	logFormat   string
	debug       bool
	metricsFile string
}

// NewRootCmd creates the root Cobra command for the kvcache CLI.
func NewRootCmd(ver string) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "kvcache",
		Short: "Inspect and maintain a kvcache store",
		Long: `kvcache reads and writes entries of an on-disk key-value cache store and runs
its maintenance tasks. Settings come from defaults, a YAML config file,
KVCACHE_* environment variables and flags, in increasing precedence.`,
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.exit = nil
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd, a)
			a.logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.cleanup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	flags.StringVar(&a.store, "store", "", "store directory (overrides config and $"+config.EnvStore+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: auto, console, json")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging to stderr")
	flags.StringVar(&a.metricsFile, "metrics-file", "",
		"write Prometheus metrics for this run to a textfile-collector file")

	cmd.AddCommand(
		newSetCmd(a), newGetCmd(a), newExistsCmd(a), newRemoveCmd(a),
		newSweepCmd(a), newStatsCmd(a), newClearCmd(a),
		newConfigCmd(a), newVersionCmd(),
	)

	return cmd
}

// loadConfig applies defaults, the config file, the environment and flags.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if cmd.Flags().Changed("store") {
		cfg.Store = a.store
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	return nil
}

// openCache opens the configured store once per invocation.
// extra options apply only on the first call.
func (a *app) openCache(cmd *cobra.Command, extra ...kvcache.Option) (*kvcache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}

	opts := []kvcache.Option{
		kvcache.WithLogger(logging.FromContext(cmd.Context())),
		kvcache.WithSweep(a.cfg.Sweep.BatchSize, a.cfg.Sweep.Concurrency),
	}
	opts = append(opts, extra...)
	if a.metricsFile != "" {
		a.metrics = prometheus.NewRegistry()
		opts = append(opts, kvcache.WithMetrics(a.metrics, a.cfg.Metrics.Namespace))
	}

	c, err := kvcache.New(a.cfg.Store, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", a.cfg.Store, err)
	}
	a.cache = c
	return c, nil
}

func (a *app) cleanup(cmd *cobra.Command) error {
	log := logging.FromContext(cmd.Context())
	if a.metrics != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, a.metrics); err != nil {
			log.Warn().Err(err).Str("file", a.metricsFile).Msg("could not write metrics file")
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
		a.cache = nil
		if err := kvcache.CloseDefaultShared(); err != nil {
			log.Debug().Err(err).Msg("could not release memory layer")
		}
	}
	if err := cleanupLogging(cmd, a.logResult); err != nil {
		return err
	}
	if a.exit != nil {
		return a.exit
	}
	return nil
}

const rootCmdExample = `  # Store a value for ten minutes
  kvcache set session:42 "alice" --ttl 10m

  # Store structured data under a structured key
  kvcache set --json-key --json '{"user":42}' '{"name":"alice","roles":["admin"]}'

  # Read it back
  kvcache get session:42

  # Reclaim expired entries, e.g. from cron
  kvcache sweep --store /var/cache/app --metrics-file /var/lib/node_exporter/kvcache.prom

  # Show what is in the store
  kvcache stats`

package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/kvcache/internal/logging"
)

// setupLogging configures logging based on config file, environment, and CLI
// flags. Commands retrieve the logger with logging.FromContext(cmd.Context()).
func setupLogging(cmd *cobra.Command, a *app) logging.LogPathResult {
	loggingCfg := a.cfg.Logging

	if a.debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	cfg := loggingCfg.ToLoggingConfig()
	if cfg.Output != logging.OutputFile {
		cfg.Writer = cmd.ErrOrStderr()
	}

	result := logging.NewLoggerWithPath(cfg)

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := logging.ContextWithTraceID(cmd.Context(), logging.GetOrGenerateTraceID(cmd.Context()))
	logger := logging.ComponentLogger(result.Logger, "cli").With().
		Str(logging.TraceIDField, logging.TraceIDFromContext(ctx)).
		Logger()
	cmd.SetContext(logger.WithContext(ctx))

	logger.Debug().Str("command", cmd.Name()).Str("store", a.cfg.Store).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle, if any.
func cleanupLogging(_ *cobra.Command, logResult *logging.LogPathResult) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}

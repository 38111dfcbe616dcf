package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/bluenode/pkg/config"
)

// loadConfig reads the config file named by --config, falling back to the
// built-in defaults when the flag is unset or the file is absent.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// configureLogger creates a logger with the appropriate log level. Precedence:
// --log-level, then --verbose, then the config file's log_level when a config
// file was named. Without any of those the logger stays silent so it never
// interleaves with table output.
func configureLogger(cmd *cobra.Command, cfg *config.Config, verboseFlagName string) (*logrus.Logger, error) {
	logger := cfg.NewLogger()

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool(verboseFlagName)

	switch {
	case logLevelStr != "":
		switch logLevelStr {
		case "debug":
			logger.SetLevel(logrus.DebugLevel)
		case "info":
			logger.SetLevel(logrus.InfoLevel)
		case "warn":
			logger.SetLevel(logrus.WarnLevel)
		case "error":
			logger.SetLevel(logrus.ErrorLevel)
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	case !cmd.Flags().Changed("config"):
		logger.SetLevel(logrus.PanicLevel)
	}

	return logger, nil
}

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hpn/hpn-co2-enricher/internal/config"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "hpn-co2-enricher",
		Short: "Estimate product CO2 footprints with Gemini",
		Long: "hpn-co2-enricher turns scraped product records into a CO2 estimate, a concise title\n" +
			"and a concise description, using a chain of Gemini models with caching and fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default: search ., ./configs, /etc/hpn-co2-enricher)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newEnrichCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// load reads the configuration and builds the process logger from it.
func (o *rootOptions) load() (*config.Configuration, *slog.Logger, error) {
	cfg, err := config.GetConfigWithPath(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}

	logger := newLogger(os.Stderr, level, cfg.Logging.Format, isTerminal(os.Stderr))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

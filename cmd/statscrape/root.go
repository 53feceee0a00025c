// Root command for the statscrape CLI.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtsift/statscrape/config"
	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/store"
)

// Global flag values. Zero values mean "not set"; only set flags override
// the loaded configuration.
var (
	flagConfig      string
	flagDB          string
	flagFetcher     string
	flagWorkers     int
	flagDelay       time.Duration
	flagMetricsAddr string
	flagVerbose     bool
)

// cfg is resolved once in PersistentPreRunE for all subcommands.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "statscrape",
	Short:         "Statscrape ingests paginated stat tables into a local store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			loaded.DBPath = flagDB
		}
		if cmd.Flags().Changed("fetcher") {
			loaded.Fetcher = flagFetcher
		}
		if cmd.Flags().Changed("workers") {
			loaded.Workers = flagWorkers
		}
		if cmd.Flags().Changed("delay") {
			loaded.Delay = flagDelay
		}
		if cmd.Flags().Changed("metrics-addr") {
			loaded.MetricsAddr = flagMetricsAddr
		}
		if flagVerbose {
			loaded.Verbose = true
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logger := newLogger(cfg.Verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagFetcher, "fetcher", "", "fetcher kind: browser or static")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "number of concurrent workers")
	rootCmd.PersistentFlags().DurationVar(&flagDelay, "delay", 0, "pause between work items per worker")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(categoriesCmd)
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.DBPath)
}

func newFetcher(onRetry func()) fetch.Fetcher {
	opts := fetch.Options{
		Host:            cfg.Host(),
		UserAgent:       cfg.UserAgent,
		NavTimeout:      cfg.NavTimeout,
		WaitTimeout:     cfg.WaitTimeout,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		RetryDelayMax:   cfg.RetryDelayMax,
		Headless:        cfg.Headless,
		NoDataSelector:  cfg.NoDataSelector,
		NextSelector:    cfg.NextSelector,
		DisabledMarkers: cfg.DisabledMarkers,
		OnRetry:         onRetry,
	}
	if cfg.Fetcher == config.FetcherStatic {
		return fetch.NewStatic(opts, slog.Default())
	}
	return fetch.NewBrowser(opts, slog.Default())
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

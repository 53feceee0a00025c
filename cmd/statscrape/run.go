package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/courtsift/statscrape/models"
	"github.com/courtsift/statscrape/scraper"
)

var runCmd = &cobra.Command{
	Use:   "run <category>",
	Short: "Process every pending work item of a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := args[0]

		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		metrics := scraper.NewMetrics()
		fetcher := newFetcher(metrics.IncRetries)
		defer fetcher.Close()

		s, err := scraper.New(cfg, st, fetcher, metrics, slog.Default())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			slog.Info("shutdown signal received, waiting for in-flight work to finish")
		}()

		var metricsServer *http.Server
		if cfg.MetricsAddr != "" {
			metricsServer = &http.Server{
				Addr:    cfg.MetricsAddr,
				Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", slog.Any("error", err))
				}
			}()
			slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		}

		stats, err := s.Run(ctx, category)
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", serr))
			}
			cancel()
		}
		if err != nil {
			return err
		}

		printSummary(stats)
		if stats.Failed > 0 {
			return fmt.Errorf("run finished with %d failed item(s)", stats.Failed)
		}
		return nil
	},
}

func printSummary(stats *models.RunStats) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Run complete: %s\n", stats.Category)
	fmt.Printf("  Items:       %d/%d processed\n", stats.Processed, stats.Total)
	fmt.Printf("  Success:     %d\n", stats.Success)
	fmt.Printf("  Failed:      %d\n", stats.Failed)
	fmt.Printf("  Skipped:     %d\n", stats.Skipped)
	fmt.Printf("  Pages:       %d\n", stats.Pages)
	fmt.Printf("  Saved:       %d (%d inserted, %d updated)\n", stats.Saved, stats.Inserted, stats.Updated)
	fmt.Printf("  Excluded:    %d\n", stats.Excluded)
	fmt.Printf("  Duplicates:  %d\n", stats.Duplicates)
	fmt.Printf("  Duration:    %v\n", stats.Duration().Round(time.Millisecond))
	fmt.Println(separator)
}

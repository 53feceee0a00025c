package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courtsift/statscrape/models"
)

var (
	flagSeason     string
	flagSeasonType string
	flagAll        bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the work item queue",
}

var queueLoadCmd = &cobra.Command{
	Use:   "load <category> <file>",
	Short: "Load work item URLs from a file, one per line",
	Long: `Load reads URLs from a file, one per line, and adds them to the queue
under the given category. Season and season type are taken from each URL's
Season and SeasonType query parameters; the --season and --season-type flags
fill in for URLs that carry neither. Re-loading a known (category, season,
season type) refreshes its URL without resetting its scraped state.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, path := args[0], args[1]
		if _, err := models.LookupCategory(category); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open url file: %w", err)
		}
		defer f.Close()

		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		added, refreshed, skipped := 0, 0, 0
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() {
			line++
			raw := strings.TrimSpace(scanner.Text())
			if raw == "" || strings.HasPrefix(raw, "#") {
				continue
			}
			item, err := workItemFromURL(category, raw)
			if err != nil {
				slog.Warn("skipping line", slog.Int("line", line), slog.Any("error", err))
				skipped++
				continue
			}
			isNew, err := st.Add(cmd.Context(), item)
			if err != nil {
				return fmt.Errorf("add work item (line %d): %w", line, err)
			}
			if isNew {
				added++
			} else {
				refreshed++
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read url file: %w", err)
		}

		fmt.Printf("Loaded %s: %d added, %d refreshed, %d skipped\n", category, added, refreshed, skipped)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list <category>",
	Short: "List queued work items (pending only unless --all)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := args[0]

		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		var items []models.WorkItem
		if flagAll {
			items, err = st.ListItems(cmd.Context(), category)
		} else {
			items, err = st.ListPending(cmd.Context(), category)
		}
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("queue is empty")
			return nil
		}
		for _, item := range items {
			state := "pending"
			if item.Scraped {
				state = "scraped"
			}
			fmt.Printf("%-8s %-10s %-16s %s\n", state, item.Season, item.SeasonType, item.URL)
		}
		return nil
	},
}

func init() {
	queueLoadCmd.Flags().StringVar(&flagSeason, "season", "", "season for URLs without a Season query parameter")
	queueLoadCmd.Flags().StringVar(&flagSeasonType, "season-type", "", "season type for URLs without a SeasonType query parameter")
	queueListCmd.Flags().BoolVar(&flagAll, "all", false, "include already-scraped items")

	queueCmd.AddCommand(queueLoadCmd)
	queueCmd.AddCommand(queueListCmd)
}

// workItemFromURL builds a work item for one queue line. The URL's Season
// and SeasonType query parameters win over the flag fallbacks.
func workItemFromURL(category, raw string) (models.WorkItem, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return models.WorkItem{}, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return models.WorkItem{}, fmt.Errorf("url %q has no host", raw)
	}

	query := parsed.Query()
	season := query.Get("Season")
	if season == "" {
		season = flagSeason
	}
	seasonType := query.Get("SeasonType")
	if seasonType == "" {
		seasonType = flagSeasonType
	}
	if season == "" || seasonType == "" {
		return models.WorkItem{}, fmt.Errorf("url %q: season and season type are required (query parameters or flags)", raw)
	}

	return models.WorkItem{
		Category:   category,
		Season:     season,
		SeasonType: seasonType,
		URL:        raw,
	}, nil
}

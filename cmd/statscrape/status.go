package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtsift/statscrape/models"
)

var flagAttempts int

var statusCmd = &cobra.Command{
	Use:   "status [category]",
	Short: "Show run status, optionally with recent attempts for one category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		if len(args) == 0 {
			statuses, err := st.Statuses(cmd.Context())
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, s := range statuses {
				printStatus(s)
			}
			return nil
		}

		category := args[0]
		statuses, err := st.Statuses(cmd.Context())
		if err != nil {
			return err
		}
		found := false
		for _, s := range statuses {
			if s.Category == category {
				printStatus(s)
				found = true
			}
		}
		if !found {
			fmt.Printf("%s: no runs recorded\n", category)
		}

		attempts, err := st.ListAttempts(cmd.Context(), category)
		if err != nil {
			return err
		}
		if len(attempts) > flagAttempts {
			attempts = attempts[:flagAttempts]
		}
		for _, a := range attempts {
			line := fmt.Sprintf("  %s  %-10s  %s %s %s",
				a.StartedAt.Format(time.RFC3339), a.Status, a.Category, a.Season, a.SeasonType)
			if a.Error != "" {
				line += "  " + a.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the registered stat categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range models.CategoryNames() {
			desc, err := models.LookupCategory(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %d field(s), key %v\n", name, len(desc.Fields), desc.KeyFields)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&flagAttempts, "attempts", 10, "number of recent attempts to show")
}

func printStatus(s models.RunStatus) {
	state := "idle"
	if s.IsRunning {
		state = "running"
	}
	last := "never"
	if !s.LastExecution.IsZero() {
		last = s.LastExecution.Format(time.RFC3339)
	}
	fmt.Printf("%-12s %-8s last run %s", s.Category, state, last)
	if s.LastURLScraped != "" {
		fmt.Printf("  last url %s", s.LastURLScraped)
	}
	fmt.Println()
}

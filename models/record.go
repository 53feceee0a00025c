// Package models defines the data structures shared across the scraping pipeline.
package models

import "time"

// Cell is one (column, text) pair extracted from a table row. The column name
// is the header text exactly as scraped; canonicalisation happens during
// normalization.
type Cell struct {
	Column string
	Text   string
}

// RawRow is one table row as extracted from a rendered page, before any
// cleaning. Rows keep document order because the source's default sort is
// meaningful.
type RawRow struct {
	Cells      []Cell
	EntityID   string // id recovered from an anchor href, e.g. a game id
	PageNumber int    // 1-based page the row came from
	SourceURL  string
	Category   string
}

// Value returns the cell text for a scraped column name.
func (r *RawRow) Value(column string) (string, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c.Text, true
		}
	}
	return "", false
}

// Record is a normalized, typed row ready for persistence. Fields maps
// canonical lowercase field names to int64, float64, string, time.Time or nil.
// Key is the natural key used for upsert identity; it is never empty on a
// record that leaves the normalizer.
type Record struct {
	Key        string
	EntityID   string
	Season     string
	SeasonType string
	Fields     map[string]any
	SourceURL  string
	PageNumber int
	ScrapedAt  time.Time
}

// RunStats aggregates the outcome of one orchestrator run over a category.
type RunStats struct {
	Category   string
	Total      int // work items seen
	Processed  int // items that went through the full pipeline
	Success    int
	Failed     int
	Skipped    int
	Saved      int // records written (inserted + updated)
	Inserted   int
	Updated    int
	Excluded   int // rows rejected for a missing natural key
	Duplicates int // rows sharing a natural key within the run
	Pages      int
	StartTime  time.Time
	EndTime    time.Time
}

// Duration returns the wall-clock length of the run.
func (s *RunStats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

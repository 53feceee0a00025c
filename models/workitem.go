package models

import "time"

// WorkItem is one pending scrape target. Items are created by an external
// link-discovery process; the pipeline only reads them and flips Scraped after
// a fully successful persist.
type WorkItem struct {
	ID         int64
	Category   string
	Season     string
	SeasonType string
	URL        string
	Scraped    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AttemptStatus is the terminal (or in-flight) state of one processing attempt.
type AttemptStatus string

const (
	StatusProcessing AttemptStatus = "processing"
	StatusSuccess    AttemptStatus = "success"
	StatusFailed     AttemptStatus = "failed"
	StatusSkipped    AttemptStatus = "skipped"
)

// RunAttempt is one logged outcome of processing a single work item. A
// processing row is written when the attempt starts so stuck runs stay
// visible; the terminal status is written when it ends.
type RunAttempt struct {
	ID         string // uuid
	Category   string
	Season     string
	SeasonType string
	URL        string
	Status     AttemptStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunStatus is the singleton per-category scraper state read by external
// monitoring.
type RunStatus struct {
	Category       string
	LastExecution  time.Time
	LastURLScraped string
	IsRunning      bool
}

// Package fetch renders target URLs and exposes their stat table to the
// parser. Two implementations exist: a headless-browser fetcher for the
// JavaScript-rendered site, and a plain HTTP fetcher for server-rendered
// mirrors. Both honour the same retry, domain-check and no-data contracts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoData is returned by Fetch when the page explicitly signals that no
// rows exist for the requested filters. It is a successful outcome, not a
// failure, and is never retried.
var ErrNoData = errors.New("no data available")

// NavigationError is a terminal fetch failure after all retries were spent.
type NavigationError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: giving up after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Table is one rendered stat table, captured as outer HTML for the parser.
type Table struct {
	HTML string
	URL  string
}

// PageSession is one worker's view of the site: it renders URLs and walks
// the pagination control of the current result set. Sessions are owned by a
// single worker and are not safe for concurrent use.
type PageSession interface {
	// Fetch navigates to url, waits for the table selector, and returns the
	// rendered table. It retries transient navigation failures internally and
	// returns ErrNoData when the page carries the no-data marker.
	Fetch(ctx context.Context, url string) (*Table, error)
	// NextPage activates the next-page control of the current result set and
	// returns the re-rendered table. ok is false when no enabled control
	// exists, which ends pagination normally.
	NextPage(ctx context.Context) (t *Table, ok bool, err error)
	// Close releases the session's page resources.
	Close() error
}

// Fetcher owns the rendering substrate and hands out sessions. The substrate
// is acquired lazily on the first Open and released by Close on all paths.
type Fetcher interface {
	Open(ctx context.Context, tableSelector string) (PageSession, error)
	Close() error
}

// Options configures both fetcher implementations.
type Options struct {
	Host            string // expected host; landing elsewhere fails the navigation
	UserAgent       string
	NavTimeout      time.Duration
	WaitTimeout     time.Duration // budget for the table selector to appear
	MaxRetries      int
	RetryDelay      time.Duration
	RetryDelayMax   time.Duration
	Headless        bool
	NoDataSelector  string
	NextSelector    string
	DisabledMarkers []string

	// OnRetry is invoked once per scheduled navigation retry, before the
	// backoff sleep. Optional.
	OnRetry func()
}

func (o Options) withDefaults() Options {
	if o.NavTimeout <= 0 {
		o.NavTimeout = 30 * time.Second
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 15 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if len(o.DisabledMarkers) == 0 {
		o.DisabledMarkers = []string{"disabled", "inactive"}
	}
	return o
}

// markedDisabled reports whether a pagination control's class list carries one
// of the configured disabled markers.
func (o Options) markedDisabled(class string) bool {
	class = strings.ToLower(class)
	for _, marker := range o.DisabledMarkers {
		if marker != "" && strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

// backoff returns the delay before retry attempt n (1-based), doubling from
// RetryDelay and capped at RetryDelayMax.
func (o Options) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := o.RetryDelay * time.Duration(1<<(attempt-1))
	if o.RetryDelayMax > 0 && delay > o.RetryDelayMax {
		delay = o.RetryDelayMax
	}
	return delay
}

// sleep waits for d or until the context ends, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

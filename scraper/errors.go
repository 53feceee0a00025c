package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/normalize"
	"github.com/courtsift/statscrape/store"
)

// FatalError aborts the whole run immediately. Everything else is contained
// at the per-item boundary.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether an error should abort the run.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// errorTypeLabel maps an error to its metrics label.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var nav *fetch.NavigationError
	if errors.As(err, &nav) {
		return "navigation"
	}
	var key *normalize.KeyMissingError
	if errors.As(err, &key) {
		return "key_missing"
	}
	var partial *store.PartialError
	if errors.As(err, &partial) {
		return "persist_partial"
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return "fatal"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "other"
}

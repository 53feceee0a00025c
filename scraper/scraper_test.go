package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/courtsift/statscrape/config"
	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/models"
	"github.com/courtsift/statscrape/store"
)

func init() {
	models.RegisterCategory(testDesc)
}

// fakeFetcher hands out pre-built sessions.
type fakeFetcher struct {
	sessions []*fakeSession
	next     int
	openErr  error
	closed   bool
}

func (f *fakeFetcher) Open(ctx context.Context, tableSelector string) (fetch.PageSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	s := f.sessions[f.next]
	if f.next < len(f.sessions)-1 {
		f.next++
	}
	return s, nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.Workers = 1
	cfg.Delay = 0
	cfg.ChunkSize = 2
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, fetcher fetch.Fetcher) (*Scraper, *store.Store) {
	t.Helper()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s, err := New(cfg, st, fetcher, nil, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	return s, st
}

func addItem(t *testing.T, st *store.Store, season string) models.WorkItem {
	t.Helper()
	item := models.WorkItem{
		Category:   "gamelog",
		Season:     season,
		SeasonType: "Regular Season",
		URL:        "https://example.test/stats?Season=" + season,
	}
	if _, err := st.Add(context.Background(), item); err != nil {
		t.Fatalf("add item: %v", err)
	}
	return item
}

func TestRunPersistsThenMarksScraped(t *testing.T) {
	cfg := testConfig(t)
	// three parsed rows, one without a game link: it has no natural key and
	// must be excluded without failing the item
	session := &fakeSession{pages: []string{tableHTML(
		[3]string{"001", "BOS", "114"},
		[3]string{"002", "NYK", "99"},
		[3]string{"", "MIA", "105"},
	)}}
	fetcher := &fakeFetcher{sessions: []*fakeSession{session}}
	s, st := newTestScraper(t, cfg, fetcher)
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if stats.Success != 1 || stats.Failed != 0 {
		t.Fatalf("success=%d failed=%d, want 1/0", stats.Success, stats.Failed)
	}
	if stats.Saved != 2 || stats.Inserted != 2 {
		t.Fatalf("saved=%d inserted=%d, want 2/2", stats.Saved, stats.Inserted)
	}
	if stats.Excluded != 1 {
		t.Fatalf("excluded=%d, want 1", stats.Excluded)
	}
	if stats.Pages != 1 {
		t.Fatalf("pages=%d, want 1", stats.Pages)
	}

	ctx := context.Background()
	n, err := st.CountRecords(ctx, "gamelog")
	if err != nil || n != 2 {
		t.Fatalf("stored records=%d err=%v, want 2", n, err)
	}
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatal("item should be marked scraped after a successful persist")
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 {
		t.Fatalf("attempts=%d err=%v, want 1", len(attempts), err)
	}
	if attempts[0].Status != models.StatusSuccess {
		t.Fatalf("attempt status=%s, want success", attempts[0].Status)
	}
	if !session.closed {
		t.Fatal("session should be closed when the worker exits")
	}
}

func TestRunNoDataLeavesItemPending(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{noData: true}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// a missing dataset is a successful attempt with nothing saved
	if stats.Success != 1 || stats.Saved != 0 {
		t.Fatalf("success=%d saved=%d, want 1/0", stats.Success, stats.Saved)
	}

	ctx := context.Background()
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v, want the item to stay retryable", len(pending), err)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 || attempts[0].Status != models.StatusSuccess {
		t.Fatalf("attempts=%v err=%v, want one success", attempts, err)
	}
}

func TestRunSkipsScrapedItem(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{pages: []string{tableHTML([3]string{"001", "BOS", "114"})}}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	ctx := context.Background()

	item := addItem(t, st, "2023-24")
	if err := st.MarkScraped(ctx, item.Category, item.Season, item.SeasonType); err != nil {
		t.Fatalf("mark scraped: %v", err)
	}

	stats, err := s.Run(ctx, "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 1 || stats.Success != 0 {
		t.Fatalf("skipped=%d success=%d, want 1/0", stats.Skipped, stats.Success)
	}
	if session.fetched != 0 {
		t.Fatalf("fetched=%d, skipped items must not touch the fetcher", session.fetched)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 || attempts[0].Status != models.StatusSkipped {
		t.Fatalf("attempts=%v err=%v, want one skipped", attempts, err)
	}
}

func TestRunFetchFailureContainedToItem(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{fetchErr: &fetch.NavigationError{URL: "x", Attempts: 4, Err: errors.New("timeout")}}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("item failure must not fail the run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("failed=%d, want 1", stats.Failed)
	}

	ctx := context.Background()
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v, failed item must stay pending", len(pending), err)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 {
		t.Fatalf("attempts=%d err=%v, want 1", len(attempts), err)
	}
	if attempts[0].Status != models.StatusFailed || attempts[0].Error == "" {
		t.Fatalf("attempt=%+v, want failed with recorded error", attempts[0])
	}
}

func TestRunPartialPaginationFailsButKeepsRows(t *testing.T) {
	cfg := testConfig(t)
	// page 2 exists, but the next control breaks on activation
	session := &fakeSession{
		pages: []string{
			tableHTML([3]string{"001", "BOS", "114"}),
			tableHTML([3]string{"002", "NYK", "99"}),
		},
		nextErrAt: 1,
	}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Failed != 1 || stats.Success != 0 {
		t.Fatalf("failed=%d success=%d, want 1/0", stats.Failed, stats.Success)
	}
	if stats.Saved != 1 {
		t.Fatalf("saved=%d, gathered rows must still be persisted", stats.Saved)
	}

	ctx := context.Background()
	n, err := st.CountRecords(ctx, "gamelog")
	if err != nil || n != 1 {
		t.Fatalf("stored records=%d err=%v, want 1", n, err)
	}
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v, item must stay pending so the tail is refetched", len(pending), err)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 {
		t.Fatalf("attempts=%d err=%v, want 1", len(attempts), err)
	}
	if attempts[0].Status != models.StatusFailed || attempts[0].Error == "" {
		t.Fatalf("attempt=%+v, want failed with the pagination error recorded", attempts[0])
	}
}

func TestRunSessionOpenFailureFailsItems(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{openErr: errors.New("browser launch failed")}
	s, st := newTestScraper(t, cfg, fetcher)
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 1 {
		t.Fatalf("processed=%d failed=%d, want 1/1", stats.Processed, stats.Failed)
	}

	ctx := context.Background()
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v, item must stay pending", len(pending), err)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 {
		t.Fatalf("attempts=%d err=%v, every undrained item needs an attempt row", len(attempts), err)
	}
	if attempts[0].Status != models.StatusFailed {
		t.Fatalf("attempt status=%s, want failed", attempts[0].Status)
	}
	if !strings.Contains(attempts[0].Error, "open fetch session") {
		t.Fatalf("attempt error=%q, want the open failure recorded", attempts[0].Error)
	}
}

func TestRunUnknownCategoryIsFatal(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{{}}})

	_, err := s.Run(context.Background(), "does-not-exist")
	if err == nil || !IsFatal(err) {
		t.Fatalf("err=%v, want fatal", err)
	}
}

func TestRunMarksStoppedOnExit(t *testing.T) {
	cfg := testConfig(t)
	session := &fakeSession{noData: true}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	addItem(t, st, "2023-24")

	if _, err := s.Run(context.Background(), "gamelog"); err != nil {
		t.Fatalf("run: %v", err)
	}

	statuses, err := st.Statuses(context.Background())
	if err != nil || len(statuses) != 1 {
		t.Fatalf("statuses=%v err=%v", statuses, err)
	}
	if statuses[0].IsRunning {
		t.Fatal("category must be marked stopped after the run")
	}
	if statuses[0].LastExecution.IsZero() {
		t.Fatal("last execution must be stamped")
	}
}

func TestRunProcessesMultipleItems(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 2
	// both workers serve the same endless-free single page
	s1 := &fakeSession{pages: []string{tableHTML([3]string{"001", "BOS", "114"})}}
	s2 := &fakeSession{pages: []string{tableHTML([3]string{"002", "NYK", "99"})}}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{s1, s2}})
	addItem(t, st, "2022-23")
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Total != 2 || stats.Success != 2 {
		t.Fatalf("total=%d success=%d, want 2/2", stats.Total, stats.Success)
	}
	pending, err := st.ListPending(context.Background(), "gamelog")
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending=%d err=%v, want none", len(pending), err)
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"navigation", &fetch.NavigationError{URL: "x", Attempts: 2, Err: errors.New("boom")}, "navigation"},
		{"persist partial", &store.PartialError{Saved: 3, Chunk: 2, Err: errors.New("disk full")}, "persist_partial"},
		{"fatal", &FatalError{Err: errors.New("bad descriptor")}, "fatal"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"other", errors.New("boom"), "other"},
		{"nil", nil, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.want {
				t.Fatalf("label = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFatalErrorUnwrap(t *testing.T) {
	cause := errors.New("bad descriptor")
	err := &FatalError{Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("FatalError must unwrap to its cause")
	}
	if !IsFatal(err) {
		t.Fatal("IsFatal should detect a wrapped fatal error")
	}
	if IsFatal(cause) {
		t.Fatal("IsFatal must not match arbitrary errors")
	}
}

// a realistic multi-page item: 50 + 37 rows, one of them without a game link
func TestRunLargeItemAcrossPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChunkSize = 25

	first := make([][3]string, 0, 50)
	for i := 0; i < 50; i++ {
		first = append(first, [3]string{fmt.Sprintf("00223%05d", i), "BOS", "114"})
	}
	second := make([][3]string, 0, 37)
	for i := 0; i < 37; i++ {
		id := fmt.Sprintf("00223%05d", 50+i)
		if i == 10 {
			id = "" // row without a game link has no natural key
		}
		second = append(second, [3]string{id, "NYK", "99"})
	}
	session := &fakeSession{pages: []string{tableHTML(first...), tableHTML(second...)}}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{session}})
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Pages != 2 {
		t.Fatalf("pages=%d, want 2", stats.Pages)
	}
	if stats.Saved != 86 || stats.Inserted != 86 {
		t.Fatalf("saved=%d inserted=%d, want 86/86", stats.Saved, stats.Inserted)
	}
	if stats.Excluded != 1 {
		t.Fatalf("excluded=%d, want 1", stats.Excluded)
	}

	ctx := context.Background()
	n, err := st.CountRecords(ctx, "gamelog")
	if err != nil || n != 86 {
		t.Fatalf("stored records=%d err=%v, want 86", n, err)
	}
	pending, err := st.ListPending(ctx, "gamelog")
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending=%d err=%v, want item marked scraped", len(pending), err)
	}
	attempts, err := st.ListAttempts(ctx, "gamelog")
	if err != nil || len(attempts) != 1 || attempts[0].Status != models.StatusSuccess {
		t.Fatalf("attempts=%v err=%v, want one success", attempts, err)
	}
}

// duplicate keys across items in one run are counted, not dropped
func TestRunCountsDuplicateKeys(t *testing.T) {
	cfg := testConfig(t)
	page := tableHTML([3]string{"001", "BOS", "114"})
	s1 := &fakeSession{pages: []string{page}}
	s, st := newTestScraper(t, cfg, &fakeFetcher{sessions: []*fakeSession{s1}})
	addItem(t, st, "2022-23")
	addItem(t, st, "2023-24")

	stats, err := s.Run(context.Background(), "gamelog")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("duplicates=%d, want 1 (same key seen twice)", stats.Duplicates)
	}
	if stats.Saved != 2 {
		t.Fatalf("saved=%d, duplicates are still persisted (last write wins)", stats.Saved)
	}
}

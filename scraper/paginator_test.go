package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/courtsift/statscrape/fetch"
	"github.com/courtsift/statscrape/models"
)

var testDesc = &models.CategoryDescriptor{
	Name:              "gamelog",
	TableSelector:     "table.stats",
	EntityPathSegment: "/game/",
	KeyFields:         []string{models.KeyEntityID, "team"},
	Fields: []models.FieldRule{
		{Name: "team", Type: models.FieldString, Aliases: []string{"Team"}},
		{Name: "pts", Type: models.FieldInt, Aliases: []string{"PTS"}},
	},
}

// tableHTML renders one stats page. Each row carries a game link except
// those whose id is empty.
func tableHTML(rows ...[3]string) string {
	html := `<table class="stats"><thead><tr><th>Team</th><th>MATCH UP</th><th>PTS</th></tr></thead><tbody>`
	for _, r := range rows {
		id, team, pts := r[0], r[1], r[2]
		if id == "" {
			html += fmt.Sprintf(`<tr><td>%s</td><td>vs</td><td>%s</td></tr>`, team, pts)
		} else {
			html += fmt.Sprintf(`<tr><td>%s</td><td><a href="/game/%s/box-score">vs</a></td><td>%s</td></tr>`, team, id, pts)
		}
	}
	return html + `</tbody></table>`
}

// fakeSession serves a fixed page sequence without any browser.
type fakeSession struct {
	pages     []string
	noData    bool
	fetchErr  error
	nextErrAt int // 1-based page after which NextPage errors; 0 disables
	endless   bool

	idx      int
	fetched  int
	advanced int
	closed   bool
}

func (f *fakeSession) Fetch(ctx context.Context, url string) (*fetch.Table, error) {
	f.fetched++
	if f.noData {
		return nil, fetch.ErrNoData
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.idx = 0
	return &fetch.Table{HTML: f.pages[0], URL: url}, nil
}

func (f *fakeSession) NextPage(ctx context.Context) (*fetch.Table, bool, error) {
	f.advanced++
	if f.nextErrAt > 0 && f.idx+1 >= f.nextErrAt {
		return nil, false, errors.New("next control vanished")
	}
	if f.endless {
		f.idx++
		return &fetch.Table{HTML: f.pages[0], URL: fmt.Sprintf("page-%d", f.idx)}, true, nil
	}
	if f.idx+1 >= len(f.pages) {
		return nil, false, nil
	}
	f.idx++
	return &fetch.Table{HTML: f.pages[f.idx], URL: fmt.Sprintf("page-%d", f.idx)}, true, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newTestPaginator(session fetch.PageSession, maxPages int) *paginator {
	return &paginator{
		session:  session,
		desc:     testDesc,
		maxPages: maxPages,
		log:      slog.Default(),
		metrics:  NewMetrics(),
	}
}

func TestCollectMultiPage(t *testing.T) {
	session := &fakeSession{pages: []string{
		tableHTML([3]string{"001", "BOS", "114"}, [3]string{"002", "NYK", "99"}),
		tableHTML([3]string{"003", "MIA", "105"}),
	}}
	p := newTestPaginator(session, 1000)

	rows, pages, err := p.collect(context.Background(), "https://example.test/stats")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if pages != 2 {
		t.Fatalf("pages = %d, want 2", pages)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].PageNumber != 1 || rows[2].PageNumber != 2 {
		t.Fatalf("page numbers = %d/%d, want 1/2", rows[0].PageNumber, rows[2].PageNumber)
	}
	if rows[0].Category != "gamelog" {
		t.Fatalf("category = %q", rows[0].Category)
	}
	if rows[2].EntityID != "003" {
		t.Fatalf("entity id = %q, want 003", rows[2].EntityID)
	}
}

func TestCollectNoData(t *testing.T) {
	session := &fakeSession{noData: true}
	p := newTestPaginator(session, 1000)

	rows, pages, err := p.collect(context.Background(), "https://example.test/stats")
	if err != nil {
		t.Fatalf("missing dataset is not an error, got %v", err)
	}
	if len(rows) != 0 || pages != 0 {
		t.Fatalf("rows=%d pages=%d, want 0/0", len(rows), pages)
	}
}

func TestCollectPageCeiling(t *testing.T) {
	session := &fakeSession{
		pages:   []string{tableHTML([3]string{"001", "BOS", "114"})},
		endless: true,
	}
	p := newTestPaginator(session, 5)

	rows, pages, err := p.collect(context.Background(), "https://example.test/stats")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if pages != 5 {
		t.Fatalf("pages = %d, want ceiling of 5", pages)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	// the ceiling must prevent the next activation, not just stop appending
	if session.advanced != 4 {
		t.Fatalf("advanced = %d, want 4", session.advanced)
	}
}

func TestCollectPartialOnBrokenPagination(t *testing.T) {
	session := &fakeSession{
		pages: []string{
			tableHTML([3]string{"001", "BOS", "114"}),
			tableHTML([3]string{"002", "NYK", "99"}),
		},
		nextErrAt: 2,
	}
	p := newTestPaginator(session, 1000)

	rows, pages, err := p.collect(context.Background(), "https://example.test/stats")
	if err == nil {
		t.Fatal("expected pagination error")
	}
	if pages != 2 {
		t.Fatalf("pages = %d, want 2 (error surfaced on second advance)", pages)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want the two pages gathered before the break", len(rows))
	}
}

func TestCollectFetchError(t *testing.T) {
	session := &fakeSession{fetchErr: &fetch.NavigationError{URL: "x", Attempts: 4, Err: errors.New("boom")}}
	p := newTestPaginator(session, 1000)

	rows, _, err := p.collect(context.Background(), "https://example.test/stats")
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want none", len(rows))
	}
	var nav *fetch.NavigationError
	if !errors.As(err, &nav) {
		t.Fatalf("error type = %T, want NavigationError", err)
	}
}

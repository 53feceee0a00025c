package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Static fetches server-rendered pages over plain HTTP. It exists for
// mirrors and archived snapshots of the stats site that carry the table in
// the initial HTML; pagination follows the next control's href instead of
// clicking it. Unsupported markup (a script-driven next button with no href)
// simply ends pagination.
type Static struct {
	opts      Options
	log       *slog.Logger
	transport http.RoundTripper // test seam; nil means default
}

// NewStatic builds a static fetcher.
func NewStatic(opts Options, log *slog.Logger) *Static {
	if log == nil {
		log = slog.Default()
	}
	return &Static{opts: opts.withDefaults(), log: log}
}

// Open creates a session with its own collector so sessions never share
// visit state across workers.
func (f *Static) Open(ctx context.Context, tableSelector string) (PageSession, error) {
	if tableSelector == "" {
		return nil, fmt.Errorf("open session: empty table selector")
	}

	options := []colly.CollectorOption{
		colly.UserAgent(f.opts.UserAgent),
		colly.AllowURLRevisit(),
	}
	if f.opts.Host != "" {
		options = append(options, colly.AllowedDomains(f.opts.Host))
	}
	collector := colly.NewCollector(options...)
	collector.SetRequestTimeout(f.opts.NavTimeout)
	if f.transport != nil {
		collector.WithTransport(f.transport)
	}

	s := &staticSession{
		opts:      f.opts,
		log:       f.log,
		collector: collector,
		selector:  tableSelector,
	}
	collector.OnResponse(func(r *colly.Response) {
		s.body = r.Body
		s.finalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, err error) {
		s.visitErr = err
	})
	return s, nil
}

// Close is a no-op; the static fetcher holds no shared resources.
func (f *Static) Close() error { return nil }

type staticSession struct {
	opts      Options
	log       *slog.Logger
	collector *colly.Collector
	selector  string

	// state of the last visit, owned by the single worker using the session
	body     []byte
	finalURL string
	visitErr error

	// current document, kept for NextPage href resolution
	doc *goquery.Document
}

func (s *staticSession) Fetch(ctx context.Context, target string) (*Table, error) {
	attempts := s.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, err := s.visit(target)
		if err == nil || errors.Is(err, ErrNoData) {
			return table, err
		}
		lastErr = err
		s.log.Warn("fetch failed",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)
		if attempt < attempts {
			if s.opts.OnRetry != nil {
				s.opts.OnRetry()
			}
			if err := sleep(ctx, s.opts.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, &NavigationError{URL: target, Attempts: attempts, Err: lastErr}
}

func (s *staticSession) visit(target string) (*Table, error) {
	s.body = nil
	s.finalURL = ""
	s.visitErr = nil

	if err := s.collector.Visit(target); err != nil {
		return nil, fmt.Errorf("visit: %w", err)
	}
	s.collector.Wait()

	if s.visitErr != nil {
		return nil, fmt.Errorf("visit: %w", s.visitErr)
	}
	if s.body == nil {
		return nil, fmt.Errorf("visit %s: no response", target)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if s.opts.NoDataSelector != "" && doc.Find(s.opts.NoDataSelector).Length() > 0 {
		return nil, ErrNoData
	}

	table := doc.Find(s.selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("table %q not present", s.selector)
	}
	html, err := goquery.OuterHtml(table)
	if err != nil {
		return nil, fmt.Errorf("read table html: %w", err)
	}

	s.doc = doc
	return &Table{HTML: html, URL: s.finalURL}, nil
}

// NextPage follows the href of the next-page control when the markup exposes
// one. Controls without an href cannot be driven without a script engine.
func (s *staticSession) NextPage(ctx context.Context) (*Table, bool, error) {
	if s.doc == nil {
		return nil, false, nil
	}

	control := s.doc.Find(s.opts.NextSelector).First()
	if control.Length() == 0 {
		return nil, false, nil
	}
	if _, exists := control.Attr("disabled"); exists {
		return nil, false, nil
	}
	if class, _ := control.Attr("class"); s.opts.markedDisabled(class) {
		return nil, false, nil
	}

	href, exists := control.Attr("href")
	if !exists || href == "" {
		s.log.Debug("next control has no href, ending pagination",
			slog.String("selector", s.opts.NextSelector))
		return nil, false, nil
	}

	next, err := s.resolve(href)
	if err != nil {
		return nil, false, fmt.Errorf("resolve next href %q: %w", href, err)
	}

	table, err := s.Fetch(ctx, next)
	if err != nil {
		return nil, false, err
	}
	return table, true, nil
}

func (s *staticSession) resolve(href string) (string, error) {
	base, err := url.Parse(s.finalURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *staticSession) Close() error {
	s.doc = nil
	s.body = nil
	return nil
}

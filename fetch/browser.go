package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// settleDelay gives the site's scripts a moment to repaint the table after a
// pagination click before the selector wait starts.
const settleDelay = 1 * time.Second

// Browser renders pages with a headless Chromium instance driven through
// go-rod. One Browser owns one Chromium process; each Open hands out a
// dedicated tab. The process is launched lazily on the first Open and killed
// by Close regardless of how sessions ended.
type Browser struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowser builds a browser fetcher. Nothing is launched until Open.
func NewBrowser(opts Options, log *slog.Logger) *Browser {
	if log == nil {
		log = slog.Default()
	}
	return &Browser{opts: opts.withDefaults(), log: log}
}

func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.opts.Headless).
		Set("ignore-certificate-errors").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080").
		Set("user-agent", b.opts.UserAgent)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	b.launcher = l
	b.browser = browser
	b.log.Debug("browser launched", slog.String("control_url", controlURL))
	return browser, nil
}

// Open creates a fresh tab bound to one category's table selector.
func (b *Browser) Open(ctx context.Context, tableSelector string) (PageSession, error) {
	if tableSelector == "" {
		return nil, fmt.Errorf("open session: empty table selector")
	}
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &browserSession{
		opts:     b.opts,
		log:      b.log,
		page:     page,
		selector: tableSelector,
	}, nil
}

// Close shuts down the Chromium process. Safe to call if nothing launched.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
	}
	b.browser = nil
	b.launcher = nil
	b.log.Debug("browser closed")
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type browserSession struct {
	opts     Options
	log      *slog.Logger
	page     *rod.Page
	selector string
}

// Fetch navigates with bounded retries. A navigation counts as successful
// only when the page stays on the expected host and the table selector (or
// the no-data marker) appears within the wait budget.
func (s *browserSession) Fetch(ctx context.Context, target string) (*Table, error) {
	attempts := s.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		table, err := s.navigate(ctx, target)
		if err == nil || errors.Is(err, ErrNoData) {
			return table, err
		}
		lastErr = err
		s.log.Warn("navigation failed",
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

func (s *browserSession) navigate(ctx context.Context, target string) (*Table, error) {
	page := s.page.Context(ctx)

	nav := page.Timeout(s.opts.NavTimeout)
	if err := nav.Navigate(target); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	if err := s.checkHost(page); err != nil {
		return nil, err
	}
	return s.waitTable(ctx, page)
}

// checkHost rejects navigations that got redirected off the expected site,
// e.g. to an interstitial or error page.
func (s *browserSession) checkHost(page *rod.Page) error {
	if s.opts.Host == "" {
		return nil
	}
	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("page info: %w", err)
	}
	parsed, err := url.Parse(info.URL)
	if err != nil || parsed.Host != s.opts.Host {
		return fmt.Errorf("landed on %q, expected host %q", info.URL, s.opts.Host)
	}
	return nil
}

// waitTable polls for the table selector, preferring the no-data marker when
// both could appear. The poll is bounded by WaitTimeout.
func (s *browserSession) waitTable(ctx context.Context, page *rod.Page) (*Table, error) {
	deadline := time.Now().Add(s.opts.WaitTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.opts.NoDataSelector != "" {
			if has, _, err := page.Has(s.opts.NoDataSelector); err == nil && has {
				return nil, ErrNoData
			}
		}

		has, el, err := page.Has(s.selector)
		if err == nil && has {
			html, err := el.HTML()
			if err != nil {
				return nil, fmt.Errorf("read table html: %w", err)
			}
			info, err := page.Info()
			if err != nil {
				return nil, fmt.Errorf("page info: %w", err)
			}
			return &Table{HTML: html, URL: info.URL}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("table %q not present after %s", s.selector, s.opts.WaitTimeout)
		}
		if err := sleep(ctx, 250*time.Millisecond); err != nil {
			return nil, err
		}
	}
}

// NextPage clicks the configured next-page control if it exists, is not
// marked disabled, and is visible, then waits for the table to re-render.
func (s *browserSession) NextPage(ctx context.Context) (*Table, bool, error) {
	page := s.page.Context(ctx)

	has, el, err := page.Has(s.opts.NextSelector)
	if err != nil {
		return nil, false, fmt.Errorf("find next control: %w", err)
	}
	if !has {
		return nil, false, nil
	}

	if disabled, err := el.Attribute("disabled"); err == nil && disabled != nil {
		return nil, false, nil
	}
	if class, err := el.Attribute("class"); err == nil && class != nil && s.opts.markedDisabled(*class) {
		return nil, false, nil
	}
	if visible, err := el.Visible(); err != nil || !visible {
		return nil, false, nil
	}

	if err := el.ScrollIntoView(); err != nil {
		return nil, false, fmt.Errorf("scroll to next control: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, false, fmt.Errorf("click next control: %w", err)
	}
	if err := sleep(ctx, settleDelay); err != nil {
		return nil, false, err
	}

	table, err := s.waitTable(ctx, page)
	if err != nil {
		return nil, false, fmt.Errorf("after pagination click: %w", err)
	}
	return table, true, nil
}

// Close releases the tab. The shared browser stays up for other sessions.
func (s *browserSession) Close() error {
	if err := s.page.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}

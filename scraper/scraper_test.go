package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/models"
	"golang.org/x/time/rate"
)

const articleHTML = `<html><head><title>Hello World</title>
<meta name="description" content="A greeting">
<script>var tracking = true;</script></head>
<body><article><p>Some words in an article.</p></article>
<a href="/relative">rel</a> <a href="http://example.com/#x">frag</a></body></html>`

// fakeFetcher records every request and answers through fn.
type fakeFetcher struct {
	fn func(ctx context.Context, req FetchRequest, call int) (*Page, error)

	mu     sync.Mutex
	calls  []FetchRequest
	times  []time.Time
	closed int
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.times = append(f.times, time.Now())
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, req, n)
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func servePage(html string) func(context.Context, FetchRequest, int) (*Page, error) {
	return func(_ context.Context, req FetchRequest, _ int) (*Page, error) {
		return &Page{HTML: html, FinalURL: req.URL}, nil
	}
}

func failWith(code string) func(context.Context, FetchRequest, int) (*Page, error) {
	return func(context.Context, FetchRequest, int) (*Page, error) {
		return nil, models.NewScrapeError(code, "boom", nil)
	}
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		DefaultTimeout: time.Second,
		RetryAttempts:  3,
		BackoffStep:    10 * time.Millisecond,
		UserAgent:      config.DefaultUserAgent,
		MaxConcurrent:  5,
		DomainInterval: time.Millisecond,
	}
}

// recordSleeps returns a sleep func that records durations without waiting.
func recordSleeps(out *[]time.Duration, mu *sync.Mutex) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*out = append(*out, d)
		return nil
	}
}

func TestScrapeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		selector string
	}{
		{"garbage", "not a url", ""},
		{"relative", "/relative/path", ""},
		{"no host", "http://", ""},
		{"bad scheme", "ftp://example.com/file", ""},
		{"control char", "http://exa\x7fmple.com", ""},
		{"bad selector", "https://example.com/", "div["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{fn: servePage(articleHTML)}
			s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f))

			_, err := s.Scrape(context.Background(), tt.url, models.ScrapingOptions{WaitForSelector: tt.selector})
			var se *models.ScrapeError
			if !errors.As(err, &se) || se.Code != models.ErrCodeInvalidInput {
				t.Fatalf("err = %v, want INVALID_INPUT", err)
			}
			var re *models.RetryError
			if errors.As(err, &re) {
				t.Errorf("invalid input must not be retried: %v", err)
			}
			if n := f.callCount(); n != 0 {
				t.Errorf("fetch called %d times, want 0", n)
			}
			if got := s.Stats().InFlight; got != 0 {
				t.Errorf("in flight = %d, want 0", got)
			}
		})
	}
}

func TestScrapeExtractsPage(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeFetcher{fn: func(_ context.Context, _ FetchRequest, _ int) (*Page, error) {
		return &Page{HTML: articleHTML, FinalURL: "http://base.com/post"}, nil
	}}
	s := New(config.BrowserConfig{}, testScraperConfig(),
		WithFetcher(f),
		WithClock(func() time.Time { return now }),
	)

	res, err := s.ScrapePage(context.Background(), "http://base.com/start", models.ScrapingOptions{})
	if err != nil {
		t.Fatalf("ScrapePage: %v", err)
	}
	data := res.Data
	if data.Title != "Hello World" {
		t.Errorf("title = %q", data.Title)
	}
	if data.Content != "Some words in an article." {
		t.Errorf("content = %q", data.Content)
	}
	if len(data.Links) != 1 || data.Links[0] != "http://base.com/relative" {
		t.Errorf("links = %v, want [http://base.com/relative]", data.Links)
	}
	if data.Metadata[models.MetaScrapedAt] != "2024-03-01T12:00:00Z" {
		t.Errorf("scrapedAt = %v", data.Metadata[models.MetaScrapedAt])
	}
	if data.WordCount() != 5 || data.ReadingTime() != 1 {
		t.Errorf("wordCount = %d, readingTime = %d", data.WordCount(), data.ReadingTime())
	}
	if res.FinalURL != "http://base.com/post" {
		t.Errorf("final URL = %q", res.FinalURL)
	}
	if strings.Contains(res.HTML, "tracking") {
		t.Errorf("sanitized HTML still has script: %q", res.HTML)
	}
}

func TestScrapeResolvesDefaults(t *testing.T) {
	f := &fakeFetcher{fn: servePage(articleHTML)}
	cfg := testScraperConfig()
	s := New(config.BrowserConfig{Headless: true}, cfg, WithFetcher(f))

	headful := false
	if _, err := s.Scrape(context.Background(), "https://a.test/", models.ScrapingOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Scrape(context.Background(), "https://b.test/", models.ScrapingOptions{
		Timeout:         250,
		UserAgent:       "custom-agent",
		Headless:        &headful,
		WaitForSelector: "#main",
	}); err != nil {
		t.Fatal(err)
	}

	def, custom := f.calls[0], f.calls[1]
	if def.Timeout != cfg.DefaultTimeout || def.UserAgent != config.DefaultUserAgent || !def.Headless {
		t.Errorf("defaults not applied: %+v", def)
	}
	if custom.Timeout != 250*time.Millisecond || custom.UserAgent != "custom-agent" || custom.Headless || custom.WaitForSelector != "#main" {
		t.Errorf("options not applied: %+v", custom)
	}
}

func TestScrapeRetriesWithLinearBackoff(t *testing.T) {
	f := &fakeFetcher{fn: failWith(models.ErrCodeNavigation)}
	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	s := New(config.BrowserConfig{}, testScraperConfig(),
		WithFetcher(f),
		WithSleep(recordSleeps(&sleeps, &mu)),
	)

	_, err := s.Scrape(context.Background(), "https://flaky.test/page", models.ScrapingOptions{})

	var re *models.RetryError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RetryError", err)
	}
	if re.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", re.Attempts)
	}
	if !strings.HasPrefix(err.Error(), "failed to scrape https://flaky.test/page after 3 attempts: ") {
		t.Errorf("message = %q", err.Error())
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeNavigation {
		t.Errorf("cause = %v, want NAVIGATION_FAILED", err)
	}
	if got := models.CodeOf(err); got != models.ErrCodeRetriesExhausted {
		t.Errorf("CodeOf = %s", got)
	}
	if n := f.callCount(); n != 3 {
		t.Errorf("fetch calls = %d, want 3", n)
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if len(sleeps) != len(want) || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Errorf("sleeps = %v, want %v", sleeps, want)
	}
	if got := s.Stats().InFlight; got != 0 {
		t.Errorf("in flight = %d after failure, want 0", got)
	}
}

func TestScrapeRecoversOnRetry(t *testing.T) {
	f := &fakeFetcher{fn: func(ctx context.Context, req FetchRequest, call int) (*Page, error) {
		if call == 1 {
			return nil, context.DeadlineExceeded
		}
		return &Page{HTML: articleHTML, FinalURL: req.URL}, nil
	}}
	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f), WithSleep(recordSleeps(&sleeps, &mu)))

	data, err := s.Scrape(context.Background(), "https://example.com/", models.ScrapingOptions{})
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if data.Title != "Hello World" {
		t.Errorf("title = %q", data.Title)
	}
	if f.callCount() != 2 || len(sleeps) != 1 || sleeps[0] != 10*time.Millisecond {
		t.Errorf("calls = %d sleeps = %v", f.callCount(), sleeps)
	}
}

func TestScrapeRetryAttemptsOption(t *testing.T) {
	f := &fakeFetcher{fn: failWith(models.ErrCodeBrowserUnavailable)}
	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f), WithSleep(recordSleeps(&sleeps, &mu)))

	_, err := s.Scrape(context.Background(), "https://example.com/", models.ScrapingOptions{RetryAttempts: 1})
	var re *models.RetryError
	if !errors.As(err, &re) || re.Attempts != 1 {
		t.Fatalf("err = %v, want RetryError after 1 attempt", err)
	}
	if len(sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", sleeps)
	}
	if models.CauseCode(err) != models.ErrCodeBrowserUnavailable {
		t.Errorf("cause code = %s", models.CauseCode(err))
	}
}

func TestScrapeAppliesAttemptTimeout(t *testing.T) {
	f := &fakeFetcher{fn: func(ctx context.Context, _ FetchRequest, _ int) (*Page, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("attempt context has no deadline")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f))

	start := time.Now()
	_, err := s.Scrape(context.Background(), "https://slow.test/", models.ScrapingOptions{Timeout: 30, RetryAttempts: 1})
	if models.CauseCode(err) != models.ErrCodeTimeout {
		t.Fatalf("err = %v, want SCRAPE_TIMEOUT cause", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not applied, took %v", elapsed)
	}
}

func TestScrapeStopsRetryingWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{fn: func(context.Context, FetchRequest, int) (*Page, error) {
		cancel()
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "boom", nil)
	}}
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f))

	_, err := s.Scrape(ctx, "https://example.com/", models.ScrapingOptions{})
	var re *models.RetryError
	if !errors.As(err, &re) || re.Attempts != 1 {
		t.Fatalf("err = %v, want RetryError after 1 attempt", err)
	}
	if models.CauseCode(err) != models.ErrCodeTimeout {
		t.Errorf("cause = %s, want SCRAPE_TIMEOUT", models.CauseCode(err))
	}
	if f.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.callCount())
	}
}

func TestScrapeSpacesSameHost(t *testing.T) {
	const interval = 100 * time.Millisecond
	cfg := testScraperConfig()
	cfg.DomainInterval = interval
	f := &fakeFetcher{fn: servePage(articleHTML)}
	s := New(config.BrowserConfig{}, cfg, WithFetcher(f))

	for _, u := range []string{"https://same.test/a", "https://SAME.test/b"} {
		if _, err := s.Scrape(context.Background(), u, models.ScrapingOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if gap := f.times[1].Sub(f.times[0]); gap < interval-10*time.Millisecond {
		t.Errorf("gap between same-host fetches = %v, want >= %v", gap, interval)
	}
}

func TestScrapeDoesNotSpaceDifferentHosts(t *testing.T) {
	cfg := testScraperConfig()
	cfg.DomainInterval = time.Second
	f := &fakeFetcher{fn: servePage(articleHTML)}
	s := New(config.BrowserConfig{}, cfg, WithFetcher(f))

	start := time.Now()
	for _, u := range []string{"https://one.test/", "https://two.test/", "https://three.test/"} {
		if _, err := s.Scrape(context.Background(), u, models.ScrapingOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("distinct hosts waited %v", elapsed)
	}
}

func TestScrapeConcurrencyCap(t *testing.T) {
	cfg := testScraperConfig()
	cfg.MaxConcurrent = 2

	var cur, peak atomic.Int32
	f := &fakeFetcher{fn: func(_ context.Context, req FetchRequest, _ int) (*Page, error) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		cur.Add(-1)
		return &Page{HTML: articleHTML, FinalURL: req.URL}, nil
	}}
	s := New(config.BrowserConfig{}, cfg, WithFetcher(f))

	var wg sync.WaitGroup
	for _, host := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Scrape(context.Background(), "https://"+host+".test/", models.ScrapingOptions{}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if got := s.Stats().InFlight; got != 0 {
		t.Errorf("in flight = %d, want 0", got)
	}
}

func TestScrapeSlotWaitHonoursContext(t *testing.T) {
	cfg := testScraperConfig()
	cfg.MaxConcurrent = 1

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, req FetchRequest, _ int) (*Page, error) {
		close(entered)
		<-unblock
		return &Page{HTML: articleHTML, FinalURL: req.URL}, nil
	}}
	s := New(config.BrowserConfig{}, cfg, WithFetcher(f))

	done := make(chan error, 1)
	go func() {
		_, err := s.Scrape(context.Background(), "https://holder.test/", models.ScrapingOptions{})
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Scrape(ctx, "https://waiter.test/", models.ScrapingOptions{})

	var re *models.RetryError
	if errors.As(err, &re) {
		t.Errorf("slot wait should not be wrapped in a retry error: %v", err)
	}
	if models.CodeOf(err) != models.ErrCodeTimeout {
		t.Errorf("err = %v, want SCRAPE_TIMEOUT", err)
	}
	if s.Stats().InFlight != 1 {
		t.Errorf("in flight = %d, want 1", s.Stats().InFlight)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
	if s.Stats().InFlight != 0 {
		t.Errorf("in flight = %d after release, want 0", s.Stats().InFlight)
	}
}

func TestScrapeReleasesSlotAfterFailure(t *testing.T) {
	cfg := testScraperConfig()
	cfg.MaxConcurrent = 1
	cfg.RetryAttempts = 1
	f := &fakeFetcher{fn: failWith(models.ErrCodeNavigation)}
	s := New(config.BrowserConfig{}, cfg, WithFetcher(f))

	for i := range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := s.Scrape(ctx, "https://down.test/", models.ScrapingOptions{})
		cancel()
		if models.CauseCode(err) != models.ErrCodeNavigation {
			t.Fatalf("call %d: err = %v, want NAVIGATION_FAILED cause", i, err)
		}
	}
	if got := s.Stats().InFlight; got != 0 {
		t.Errorf("in flight = %d, want 0", got)
	}
}

func TestStatsAndClose(t *testing.T) {
	f := &fakeFetcher{fn: servePage(articleHTML)}
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f))

	stats := s.Stats()
	if stats.MaxConcurrent != 5 || stats.InFlight != 0 || stats.BrowserConnected {
		t.Errorf("stats = %+v", stats)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if f.closed != 1 {
		t.Errorf("fetcher closed %d times", f.closed)
	}
}

func TestCloseWithoutBrowser(t *testing.T) {
	s := New(config.BrowserConfig{}, testScraperConfig())
	if s.Stats().BrowserConnected {
		t.Fatal("browser launched eagerly")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewFillsZeroConfigDefaults(t *testing.T) {
	f := &fakeFetcher{fn: failWith(models.ErrCodeNavigation)}
	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)
	s := New(config.BrowserConfig{}, config.ScraperConfig{},
		WithFetcher(f),
		WithSleep(recordSleeps(&sleeps, &mu)),
	)

	if got := s.Stats().MaxConcurrent; got != config.DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", got, config.DefaultMaxConcurrent)
	}
	if got := s.limiter.limiter("any.test").Limit(); got != rate.Every(config.DefaultDomainInterval) {
		t.Errorf("host limit = %v, want one per %v", got, config.DefaultDomainInterval)
	}

	_, err := s.Scrape(context.Background(), "https://zero.test/", models.ScrapingOptions{RetryAttempts: 2})
	var re *models.RetryError
	if !errors.As(err, &re) || re.Attempts != 2 {
		t.Fatalf("err = %v, want RetryError after 2 attempts", err)
	}
	if len(sleeps) != 1 || sleeps[0] != config.DefaultBackoffStep {
		t.Errorf("sleeps = %v, want [%v]", sleeps, config.DefaultBackoffStep)
	}
	if gap := f.times[1].Sub(f.times[0]); gap < config.DefaultDomainInterval-50*time.Millisecond {
		t.Errorf("same-host gap = %v, want >= %v", gap, config.DefaultDomainInterval)
	}

	req := f.calls[0]
	if req.Timeout != config.DefaultTimeout || req.UserAgent != config.DefaultUserAgent {
		t.Errorf("request defaults = %+v", req)
	}
}

func TestScrapeTracksInFlightGauge(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	entered := make(chan struct{})
	unblock := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, req FetchRequest, _ int) (*Page, error) {
		close(entered)
		<-unblock
		return &Page{HTML: articleHTML, FinalURL: req.URL}, nil
	}}
	s := New(config.BrowserConfig{}, testScraperConfig(), WithFetcher(f), WithMetrics(m))

	done := make(chan error, 1)
	go func() {
		_, err := s.Scrape(context.Background(), "https://gauge.test/", models.ScrapingOptions{})
		done <- err
	}()
	<-entered
	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Errorf("gauge while scraping = %v, want 1", got)
	}

	close(unblock)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("gauge after scrape = %v, want 0", got)
	}
}

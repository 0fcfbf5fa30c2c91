package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/gleaner/cleaner"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/models"
)

// Scraper renders pages in a shared browser and turns them into
// models.ScrapedData. It bounds concurrent scrapes, spaces requests to the
// same host and retries transient failures with linear backoff.
// It is safe for concurrent use.
type Scraper struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	fetcher Fetcher
	gate    *gate
	limiter *hostLimiter
	metrics *metrics.Metrics
	sleep   sleepFunc
	now     func() time.Time
}

// Result is a scrape together with the sanitized HTML it was extracted from.
type Result struct {
	Data     *models.ScrapedData
	HTML     string
	FinalURL string
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithFetcher replaces the browser-backed fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) { s.fetcher = f }
}

// WithMetrics records engine metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// WithSleep replaces the backoff sleep between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scraper) { s.sleep = sleep }
}

// WithClock replaces the clock used for metadata.scrapedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// New builds a Scraper. Nothing is launched until the first scrape.
// Zero-valued scraper settings fall back to the config package defaults.
func New(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, opts ...Option) *Scraper {
	scraperCfg = withDefaults(scraperCfg)
	s := &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		limiter:    newHostLimiter(scraperCfg.DomainInterval),
		sleep:      sleepCtx,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = newGate(scraperCfg.MaxConcurrent, s.metrics)
	if s.fetcher == nil {
		s.fetcher = newRodFetcher(browserCfg, scraperCfg, s.metrics)
	}
	return s
}

func withDefaults(cfg config.ScraperConfig) config.ScraperConfig {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = config.DefaultTimeout
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = config.DefaultRetryAttempts
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = config.DefaultBackoffStep
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = config.DefaultMaxConcurrent
	}
	if cfg.DomainInterval <= 0 {
		cfg.DomainInterval = config.DefaultDomainInterval
	}
	if cfg.NetworkIdle <= 0 {
		cfg.NetworkIdle = config.DefaultNetworkIdle
	}
	return cfg
}

// Scrape fetches rawURL and extracts its structured data.
func (s *Scraper) Scrape(ctx context.Context, rawURL string, opts models.ScrapingOptions) (*models.ScrapedData, error) {
	res, err := s.ScrapePage(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ScrapePage is Scrape that also returns the sanitized HTML and final URL.
//
// Invalid input fails with INVALID_INPUT before any slot, wait or
// navigation. Every other failure is a *models.RetryError wrapping the last
// attempt's error, except a context that ends while waiting for a slot,
// which is reported directly as SCRAPE_TIMEOUT.
func (s *Scraper) ScrapePage(ctx context.Context, rawURL string, opts models.ScrapingOptions) (*Result, error) {
	start := time.Now()

	target, err := parseTarget(rawURL)
	if err == nil {
		err = validateSelector(opts.WaitForSelector)
	}
	if err != nil {
		s.metrics.ObserveScrape(metrics.OutcomeInvalid, 0)
		return nil, err
	}

	release, err := s.gate.acquire(ctx)
	if err != nil {
		s.metrics.ObserveScrape(metrics.OutcomeFailed, time.Since(start))
		return nil, categorizeError(err, "timed out waiting for a scrape slot")
	}
	defer release()

	req := s.fetchRequest(target, opts)
	attempt := withRateLimit(s.limiter, target.Hostname(), s.metrics, s.attempt(target, req))
	res, err := retryAttempts(ctx, rawURL, retryPolicy{
		attempts: s.retryAttempts(opts),
		step:     s.scraperCfg.BackoffStep,
		sleep:    s.sleep,
		metrics:  s.metrics,
	}, attempt)
	if err != nil {
		s.metrics.ObserveScrape(metrics.OutcomeFailed, time.Since(start))
		slog.Warn("scrape failed", "url", rawURL, "error", err)
		return nil, err
	}

	s.metrics.ObserveScrape(metrics.OutcomeSuccess, time.Since(start))
	slog.Debug("scrape completed",
		"url", rawURL,
		"finalURL", res.FinalURL,
		"words", res.Data.WordCount(),
		"duration", time.Since(start),
	)
	return res, nil
}

// attempt returns the single fetch-and-extract step for req.
func (s *Scraper) attempt(target *url.URL, req FetchRequest) attemptFunc {
	return func(ctx context.Context) (*Result, error) {
		ctx, cancel := context.WithTimeout(ctx, req.Timeout)
		defer cancel()

		page, err := s.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, categorizeError(err, "navigation to target URL failed")
		}
		return s.extract(page, target)
	}
}

func (s *Scraper) extract(page *Page, target *url.URL) (*Result, error) {
	base := target
	if final, err := url.Parse(page.FinalURL); err == nil && final.IsAbs() {
		base = final
	}

	data, clean, err := cleaner.ExtractHTML(page.HTML, base, s.now())
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		HTML:     clean,
		FinalURL: base.String(),
	}, nil
}

// fetchRequest resolves per-call options against the configured defaults.
func (s *Scraper) fetchRequest(target *url.URL, opts models.ScrapingOptions) FetchRequest {
	req := FetchRequest{
		URL:             target.String(),
		Timeout:         s.scraperCfg.DefaultTimeout,
		WaitForSelector: opts.WaitForSelector,
		UserAgent:       s.scraperCfg.UserAgent,
		Headless:        s.browserCfg.Headless,
	}
	if opts.Timeout > 0 {
		req.Timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	if opts.UserAgent != "" {
		req.UserAgent = opts.UserAgent
	}
	if opts.Headless != nil {
		req.Headless = *opts.Headless
	}
	return req
}

func (s *Scraper) retryAttempts(opts models.ScrapingOptions) int {
	if opts.RetryAttempts > 0 {
		return opts.RetryAttempts
	}
	return s.scraperCfg.RetryAttempts
}

// Stats returns a snapshot of the engine's current state.
func (s *Scraper) Stats() models.EngineStats {
	stats := models.EngineStats{
		MaxConcurrent: s.gate.max,
		InFlight:      s.gate.current(),
	}
	if cr, ok := s.fetcher.(connectionReporter); ok {
		stats.BrowserConnected = cr.Connected()
	}
	return stats
}

// Close shuts the shared browser down. It is safe to call when no browser
// was ever launched and to call more than once; a later scrape launches a
// fresh browser.
func (s *Scraper) Close() error {
	slog.Info("scraper shutting down")
	return s.fetcher.Close()
}

// parseTarget accepts absolute http and https URLs only.
func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "malformed URL", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "URL must be absolute: "+rawURL, nil)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "unsupported URL scheme: "+u.Scheme, nil)
	}
	return u, nil
}

func validateSelector(selector string) error {
	if err := cleaner.ValidateSelector(selector); err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid waitForSelector", err)
	}
	return nil
}

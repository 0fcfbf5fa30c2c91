package scraper

import (
	"context"
	"time"
)

// FetchRequest describes one navigation attempt.
type FetchRequest struct {
	URL string

	// Timeout bounds navigation and selector waiting. The context passed to
	// Fetch already carries it as a deadline.
	Timeout time.Duration

	// WaitForSelector, when set, must match an element before the HTML is read.
	WaitForSelector string

	UserAgent string

	// Headless is honoured only when the fetcher has to (re)launch its browser.
	Headless bool
}

// Page is the rendered document returned by a Fetcher.
type Page struct {
	HTML     string
	FinalURL string
}

// Fetcher performs a single navigation attempt. It does not retry and does
// not rate limit; the Scraper wraps it with both.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*Page, error)
	Close() error
}

// connectionReporter is implemented by fetchers that own a browser. Connected
// reports whether one is running, without pinging it.
type connectionReporter interface {
	Connected() bool
}

package models

import "time"

// Metadata keys that are always present on a ScrapedData.
const (
	MetaScrapedAt   = "scrapedAt"
	MetaWordCount   = "wordCount"
	MetaReadingTime = "readingTime"
)

// ScrapedData is the normalized record produced by one successful scrape.
// It is never modified after the engine returns it.
type ScrapedData struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Author      string         `json:"author,omitempty"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
	Tags        []string       `json:"tags"`
	Links       []string       `json:"links"`
	Metadata    map[string]any `json:"metadata"`
}

// WordCount returns metadata.wordCount, or 0 when it is missing.
func (d *ScrapedData) WordCount() int {
	return metaInt(d.Metadata[MetaWordCount])
}

// ReadingTime returns metadata.readingTime in minutes, or 0 when it is missing.
func (d *ScrapedData) ReadingTime() int {
	return metaInt(d.Metadata[MetaReadingTime])
}

// metaInt accepts both the int stored by the extractor and the float64 a
// JSON round trip (e.g. through the Redis cache) turns it into.
func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// ScrapingOptions is the per-call options bag. Zero values fall back to the
// engine's configured defaults.
type ScrapingOptions struct {
	// Timeout bounds navigation and selector waiting per attempt, in milliseconds.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=300000"`

	// WaitForSelector is a CSS selector that must appear before the HTML is read.
	WaitForSelector string `json:"waitForSelector,omitempty"`

	// UserAgent overrides the browser user agent for this call.
	UserAgent string `json:"userAgent,omitempty"`

	// Headless selects the browser mode. It only takes effect when the shared
	// browser is (re)launched.
	Headless *bool `json:"headless,omitempty"`

	// RetryAttempts is the total number of attempts, including the first.
	RetryAttempts int `json:"retryAttempts,omitempty" binding:"omitempty,min=1,max=10"`
}

// EngineStats is a point-in-time snapshot of the scraper engine.
type EngineStats struct {
	MaxConcurrent int `json:"max_concurrent"`
	InFlight      int `json:"in_flight"`

	// BrowserConnected is true while a launched browser has not been closed.
	// It is not a liveness probe: the connection is pinged, and the browser
	// relaunched if needed, at the start of the next scrape.
	BrowserConnected bool `json:"browser_connected"`
}

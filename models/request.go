package models

// Output formats accepted by POST /api/v1/scrape.
const (
	FormatData     = "data"
	FormatMarkdown = "markdown"
)

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required"`

	// Options is passed through to the scraper engine unchanged.
	Options ScrapingOptions `json:"options"`

	// Format selects the response body.
	// "data" (default): structured ScrapedData only.
	// "markdown": ScrapedData plus a Markdown rendering of the main article.
	Format string `json:"format,omitempty" binding:"omitempty,oneof=data markdown"`

	// MaxAge enables the result cache. A cached result younger than MaxAge
	// milliseconds is returned without scraping. 0 disables the lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Format == "" {
		r.Format = FormatData
	}
}

package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// Data is the extracted record. Nil when Success is false.
	Data *ScrapedData `json:"data,omitempty"`

	// Markdown is populated when the request asked for format "markdown".
	Markdown string `json:"markdown,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent inside the engine (slot wait, rate-limit
	// wait, navigation, retries and extraction).
	ScrapeMs int64 `json:"scrape_ms"`

	// RenderMs is the time spent producing the Markdown rendering.
	RenderMs int64 `json:"render_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string      `json:"status"` // "healthy" or "degraded"
	Uptime  string      `json:"uptime"`
	Engine  EngineStats `json:"engine"`
	Version string      `json:"version"`
}

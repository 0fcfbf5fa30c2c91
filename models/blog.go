package models

import "sync"

// BlogRequest is the payload for POST /api/v1/blog/scrape.
type BlogRequest struct {
	// URL is the blog index page. Required.
	URL string `json:"url" binding:"required"`

	// Pattern keeps only index links whose URL contains it. Empty keeps
	// every same-host link.
	Pattern string `json:"pattern,omitempty"`

	// MaxPosts caps how many post links are followed.
	// Default: 10. Max: 100.
	MaxPosts int `json:"max_posts,omitempty" binding:"omitempty,min=1,max=100"`

	// Options contains shared scrape options for the index and every post.
	Options ScrapingOptions `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *BlogRequest) Defaults() {
	if r.MaxPosts == 0 {
		r.MaxPosts = 10
	}
}

// BlogResponse is the immediate response for POST /api/v1/blog/scrape.
type BlogResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// BlogStatusResponse is the response for GET /api/v1/blog/:id.
type BlogStatusResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	ScrapedCount int               `json:"scraped_count"`
	SkippedCount int               `json:"skipped_count"`
	FailedCount  int               `json:"failed_count"`
	Results      []*ScrapeResponse `json:"results,omitempty"`
	Error        *ErrorDetail      `json:"error,omitempty"`
}

// BlogJob tracks an in-progress blog scrape.
type BlogJob struct {
	mu        sync.Mutex
	ID        string
	Status    string
	Scraped   int
	Skipped   int
	Failed    int
	Results   []*ScrapeResponse
	Error     *ErrorDetail
	CreatedAt int64 // unix timestamp
}

// Add appends a post result.
func (j *BlogJob) Add(resp *ScrapeResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = append(j.Results, resp)
	if resp.Success {
		j.Scraped++
	} else {
		j.Failed++
	}
}

// Skip records a post that was already known.
func (j *BlogJob) Skip() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Skipped++
}

// Fail marks the whole job failed, e.g. when the index page could not be scraped.
func (j *BlogJob) Fail(detail *ErrorDetail) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobFailed
	j.Error = detail
}

// Finish sets the terminal status from the counters.
func (j *BlogJob) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.Failed > 0 && j.Scraped == 0 && j.Skipped == 0:
		j.Status = JobFailed
	case j.Failed > 0:
		j.Status = JobPartial
	default:
		j.Status = JobCompleted
	}
}

// Snapshot returns a copy that is safe to serialize while the job runs.
func (j *BlogJob) Snapshot() BlogStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ScrapeResponse, len(j.Results))
	copy(results, j.Results)
	return BlogStatusResponse{
		ID:           j.ID,
		Status:       j.Status,
		ScrapedCount: j.Scraped,
		SkippedCount: j.Skipped,
		FailedCount:  j.Failed,
		Results:      results,
		Error:        j.Error,
	}
}

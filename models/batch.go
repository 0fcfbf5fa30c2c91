package models

import "sync"

// Job states shared by batch and blog jobs.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobPartial    = "partial"
	JobFailed     = "failed"
)

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// URLs is the list of target pages to scrape. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared scrape options applied to all URLs.
	Options ScrapingOptions `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
	Results   []*ScrapeResponse `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch scrape operation.
// Results is indexed like the request URLs; mu guards every mutable field.
type BatchJob struct {
	mu        sync.Mutex
	ID        string
	Status    string
	Total     int
	Completed int
	Failed    int
	Results   []*ScrapeResponse
	CreatedAt int64 // unix timestamp
}

// Record stores the result for the URL at idx.
func (j *BatchJob) Record(idx int, resp *ScrapeResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[idx] = resp
	if resp.Success {
		j.Completed++
	} else {
		j.Failed++
	}
}

// Finish sets the terminal status from the success and failure counts.
func (j *BatchJob) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.Failed == j.Total:
		j.Status = JobFailed
	case j.Failed > 0:
		j.Status = JobPartial
	default:
		j.Status = JobCompleted
	}
}

// Snapshot returns a copy that is safe to serialize while the job runs.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*ScrapeResponse, len(j.Results))
	copy(results, j.Results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Failed:    j.Failed,
		Total:     j.Total,
		Results:   results,
	}
}

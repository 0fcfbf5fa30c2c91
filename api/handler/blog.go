package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/models"
	"github.com/use-agent/gleaner/webhook"
)

// PostBlog returns a handler for POST /api/v1/blog/scrape.
//
// The index page is scraped first; its links that contain the pattern
// become the post list. Posts already in the cache are skipped and a
// failing post does not stop the run.
func PostBlog(sc Scraper, cc cache.Store, jobs *Jobs, notifier *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BlogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err.Error())
			return
		}
		req.Defaults()

		job := &models.BlogJob{
			ID:        "blog-" + uuid.NewString(),
			Status:    models.JobProcessing,
			CreatedAt: time.Now().Unix(),
		}
		jobs.blogs.Store(job.ID, job)

		go runBlog(context.Background(), sc, cc, notifier, job, req)

		c.JSON(http.StatusAccepted, models.BlogResponse{
			ID:     job.ID,
			Status: models.JobProcessing,
		})
	}
}

// GetBlog returns a handler for GET /api/v1/blog/:id.
func GetBlog(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.blog(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "blog job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

func runBlog(ctx context.Context, sc Scraper, cc cache.Store, notifier *webhook.Notifier, job *models.BlogJob, req models.BlogRequest) {
	defer func() {
		snap := job.Snapshot()
		slog.Info("blog job finished",
			"id", snap.ID,
			"status", snap.Status,
			"scraped", snap.ScrapedCount,
			"skipped", snap.SkippedCount,
			"failed", snap.FailedCount,
		)
		if req.WebhookURL != "" && notifier != nil {
			notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
				Type:      webhook.EventBlogCompleted,
				JobID:     snap.ID,
				Timestamp: time.Now().Unix(),
				Data:      snap,
			})
		}
	}()

	index, err := sc.ScrapePage(ctx, req.URL, req.Options)
	if err != nil {
		slog.Warn("blog index scrape failed", "url", req.URL, "error", err)
		job.Fail(models.DetailOf(err))
		return
	}

	for _, postURL := range postLinks(index.FinalURL, index.Data.Links, req.Pattern, req.MaxPosts) {
		key := cache.Key(postURL, models.FormatData)
		if cc != nil && cc.Contains(ctx, key) {
			job.Skip()
			continue
		}

		resp, err := scrapeOne(ctx, sc, nil, postURL, req.Options, models.FormatData)
		if err != nil {
			slog.Warn("blog post scrape failed", "url", postURL, "error", err)
			job.Add(failureResponse(postURL, err))
			continue
		}
		if cc != nil {
			cc.Set(ctx, key, resp)
		}
		job.Add(resp)
	}
	job.Finish()
}

// postLinks picks up to limit links that contain pattern. Without a
// pattern every link on the index's host qualifies. The index itself is
// never a post.
func postLinks(indexURL string, links []string, pattern string, limit int) []string {
	index, _ := url.Parse(indexURL)

	var posts []string
	for _, link := range links {
		if len(posts) >= limit {
			break
		}
		if link == indexURL {
			continue
		}
		if pattern != "" {
			if !strings.Contains(link, pattern) {
				continue
			}
		} else if u, err := url.Parse(link); err != nil || index == nil || !strings.EqualFold(u.Hostname(), index.Hostname()) {
			continue
		}
		posts = append(posts, link)
	}
	return posts
}

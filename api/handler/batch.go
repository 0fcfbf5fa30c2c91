package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/models"
	"github.com/use-agent/gleaner/webhook"
	"golang.org/x/sync/errgroup"
)

// PostBatch returns a handler for POST /api/v1/batch/scrape.
// It registers a job and scrapes every URL in the background; a failed URL
// is recorded and the rest continue.
func PostBatch(sc Scraper, cc cache.Store, jobs *Jobs, notifier *webhook.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err.Error())
			return
		}

		job := &models.BatchJob{
			ID:        "batch-" + uuid.NewString(),
			Status:    models.JobProcessing,
			Total:     len(req.URLs),
			Results:   make([]*models.ScrapeResponse, len(req.URLs)),
			CreatedAt: time.Now().Unix(),
		}
		jobs.batches.Store(job.ID, job)

		go runBatch(context.Background(), sc, cc, notifier, job, req)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.ID,
			Status: models.JobProcessing,
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.batch(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch scrapes every URL of the job. The engine enforces its own
// concurrency cap; the group limit only keeps idle goroutines down.
func runBatch(ctx context.Context, sc Scraper, cc cache.Store, notifier *webhook.Notifier, job *models.BatchJob, req models.BatchRequest) {
	var g errgroup.Group
	g.SetLimit(max(sc.Stats().MaxConcurrent, 1))

	for i, targetURL := range req.URLs {
		g.Go(func() error {
			resp, err := scrapeOne(ctx, sc, nil, targetURL, req.Options, models.FormatData)
			if err != nil {
				job.Record(i, failureResponse(targetURL, err))
				return nil
			}
			if cc != nil {
				cc.Set(ctx, cache.Key(targetURL, models.FormatData), resp)
			}
			job.Record(i, resp)
			return nil
		})
	}
	_ = g.Wait()
	job.Finish()

	snap := job.Snapshot()
	slog.Info("batch job finished",
		"id", snap.ID,
		"status", snap.Status,
		"completed", snap.Completed,
		"failed", snap.Failed,
		"total", snap.Total,
	)

	if req.WebhookURL != "" && notifier != nil {
		notifier.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     snap.ID,
			Timestamp: time.Now().Unix(),
			Data:      snap,
		})
	}
}

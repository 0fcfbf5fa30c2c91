package handler

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/gleaner/models"
)

// Jobs holds in-flight and finished batch and blog jobs. Jobs older than
// the retention passed to Run are dropped.
type Jobs struct {
	batches sync.Map // id -> *models.BatchJob
	blogs   sync.Map // id -> *models.BlogJob
}

func NewJobs() *Jobs {
	return &Jobs{}
}

// Run sweeps expired jobs every 5 minutes until ctx ends.
func (j *Jobs) Run(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(time.Now().Add(-retention).Unix())
		}
	}
}

func (j *Jobs) sweep(cutoff int64) {
	j.batches.Range(func(key, value any) bool {
		if value.(*models.BatchJob).CreatedAt < cutoff {
			j.batches.Delete(key)
		}
		return true
	})
	j.blogs.Range(func(key, value any) bool {
		if value.(*models.BlogJob).CreatedAt < cutoff {
			j.blogs.Delete(key)
		}
		return true
	})
}

func (j *Jobs) batch(id string) (*models.BatchJob, bool) {
	v, ok := j.batches.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.BatchJob), true
}

func (j *Jobs) blog(id string) (*models.BlogJob, bool) {
	v, ok := j.blogs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.BlogJob), true
}

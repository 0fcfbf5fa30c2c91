package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/gleaner/models"
)

// categorizeError wraps raw errors into typed ScrapeErrors so callers can
// tell timeouts from navigation failures. Errors that are already typed are
// returned unchanged.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

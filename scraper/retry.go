package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/models"
)

// attemptFunc performs one fetch-and-extract attempt.
type attemptFunc func(ctx context.Context) (*Result, error)

// sleepFunc pauses for d or until ctx ends.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// withRateLimit makes every attempt wait for its turn on host first.
func withRateLimit(l *hostLimiter, host string, m *metrics.Metrics, next attemptFunc) attemptFunc {
	return func(ctx context.Context) (*Result, error) {
		waited, err := l.wait(ctx, host)
		if err != nil {
			// rate.Limiter refuses up front when the deadline is too close,
			// so every failure here is a timeout.
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "rate limit wait exceeded deadline", err)
		}
		m.ObserveRateLimitWait(waited)
		if waited > 0 {
			slog.Debug("rate limited", "host", host, "waited", waited)
		}
		return next(ctx)
	}
}

// retryPolicy drives retryAttempts.
type retryPolicy struct {
	attempts int
	step     time.Duration
	sleep    sleepFunc
	metrics  *metrics.Metrics
}

// retryAttempts runs next up to p.attempts times, sleeping step×n after the
// n-th failure. Invalid input is returned as is; any other final failure is
// wrapped in a *models.RetryError carrying the last cause.
func retryAttempts(ctx context.Context, rawURL string, p retryPolicy, next attemptFunc) (*Result, error) {
	attempts := max(p.attempts, 1)

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := next(ctx)
		if err == nil {
			p.metrics.IncAttempt("ok")
			return res, nil
		}
		p.metrics.IncAttempt(models.CauseCode(err))

		if models.CauseCode(err) == models.ErrCodeInvalidInput {
			return nil, err
		}
		last = err

		if ctx.Err() != nil {
			return nil, &models.RetryError{URL: rawURL, Attempts: attempt, Err: categorizeError(ctx.Err(), "scrape canceled")}
		}
		if attempt == attempts {
			break
		}

		backoff := p.step * time.Duration(attempt)
		slog.Warn("scrape attempt failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if err := p.sleep(ctx, backoff); err != nil {
			return nil, &models.RetryError{URL: rawURL, Attempts: attempt, Err: categorizeError(err, "scrape canceled")}
		}
	}
	return nil, &models.RetryError{URL: rawURL, Attempts: attempts, Err: last}
}

package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter spaces navigations to the same hostname by at least interval.
// Each host gets a limiter with burst 1, so the first request to a host
// never waits.
type hostLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	h.mu.Lock()
	defer h.mu.Unlock()

	lim, ok := h.limiters[host]
	if !ok {
		limit := rate.Inf
		if h.interval > 0 {
			limit = rate.Every(h.interval)
		}
		lim = rate.NewLimiter(limit, 1)
		h.limiters[host] = lim
	}
	return lim
}

// wait blocks until host may be contacted again and reports how long it
// waited. It fails early when ctx would expire before the slot opens.
func (h *hostLimiter) wait(ctx context.Context, host string) (time.Duration, error) {
	start := time.Now()
	err := h.limiter(host).Wait(ctx)
	return time.Since(start), err
}

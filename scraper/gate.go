package scraper

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/use-agent/gleaner/metrics"
	"golang.org/x/sync/semaphore"
)

// gate caps the number of scrapes in flight. Waiters are not served in
// arrival order.
type gate struct {
	sem      *semaphore.Weighted
	max      int
	inFlight atomic.Int64
	metrics  *metrics.Metrics
}

func newGate(max int, m *metrics.Metrics) *gate {
	if max < 1 {
		max = 1
	}
	return &gate{sem: semaphore.NewWeighted(int64(max)), max: max, metrics: m}
}

// acquire blocks until a slot is free or ctx ends. The returned release
// func is safe to call more than once; only the first call frees the slot.
func (g *gate) acquire(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	g.inFlight.Add(1)
	g.metrics.IncInFlight()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inFlight.Add(-1)
			g.metrics.DecInFlight()
			g.sem.Release(1)
		})
	}, nil
}

func (g *gate) current() int {
	return int(g.inFlight.Load())
}

package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/gleaner/models"
)

func TestHostLimiterSpacing(t *testing.T) {
	l := newHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	if waited, err := l.wait(ctx, "a.test"); err != nil || waited > 10*time.Millisecond {
		t.Fatalf("first wait = %v, %v", waited, err)
	}
	waited, err := l.wait(ctx, "A.TEST")
	if err != nil {
		t.Fatal(err)
	}
	if waited < 40*time.Millisecond {
		t.Errorf("second wait = %v, want about 50ms", waited)
	}
	if waited, _ := l.wait(ctx, "b.test"); waited > 10*time.Millisecond {
		t.Errorf("other host waited %v", waited)
	}
}

func TestHostLimiterZeroInterval(t *testing.T) {
	l := newHostLimiter(0)
	for range 5 {
		if waited, err := l.wait(context.Background(), "a.test"); err != nil || waited > 10*time.Millisecond {
			t.Fatalf("wait = %v, %v", waited, err)
		}
	}
}

func TestRateLimitDeadlineIsTimeout(t *testing.T) {
	l := newHostLimiter(time.Hour)
	next := func(context.Context) (*Result, error) { return &Result{}, nil }
	attempt := withRateLimit(l, "a.test", nil, next)

	if _, err := attempt(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := attempt(ctx)

	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeTimeout {
		t.Errorf("err = %v, want SCRAPE_TIMEOUT", err)
	}
}

func TestGateReleaseOnce(t *testing.T) {
	g := newGate(1, nil)
	release, err := g.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.current() != 1 {
		t.Fatalf("current = %d", g.current())
	}
	release()
	release()
	if g.current() != 0 {
		t.Fatalf("current = %d after double release", g.current())
	}

	// The slot is free exactly once: a second holder blocks the third.
	r2, err := g.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer r2()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := g.acquire(ctx); err == nil {
		t.Error("acquire succeeded past the cap")
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, models.ErrCodeTimeout},
		{"canceled", context.Canceled, models.ErrCodeTimeout},
		{"other", errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrCodeNavigation},
		{"typed", models.NewScrapeError(models.ErrCodeSelectorNotFound, "x", nil), models.ErrCodeSelectorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeError(tt.err, "msg").Code; got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

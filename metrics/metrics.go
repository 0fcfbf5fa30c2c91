package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scrape outcomes recorded by ScrapesTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
)

// Metrics holds the Prometheus collectors of the scraper engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ScrapesTotal    *prometheus.CounterVec
	AttemptsTotal   *prometheus.CounterVec
	ScrapeDuration  prometheus.Histogram
	InFlight        prometheus.Gauge
	RateLimitWait   prometheus.Histogram
	BrowserLaunches prometheus.Counter
}

// New registers the engine collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gleaner_scrapes_total",
			Help: "Scrape calls by final outcome.",
		}, []string{"outcome"}),
		AttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gleaner_scrape_attempts_total",
			Help: "Individual navigation attempts by result code.",
		}, []string{"result"}), // "ok" or an error code such as SCRAPE_TIMEOUT
		ScrapeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gleaner_scrape_duration_seconds",
			Help:    "End-to-end duration of scrape calls, including waits and retries.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "gleaner_scrapes_in_flight",
			Help: "Scrape calls currently holding a concurrency slot.",
		}),
		RateLimitWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gleaner_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the per-host rate limiter.",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		BrowserLaunches: f.NewCounter(prometheus.CounterOpts{
			Name: "gleaner_browser_launches_total",
			Help: "Shared browser launches, including relaunches after a disconnect.",
		}),
	}
}

// ObserveScrape records one finished scrape call and its duration.
func (m *Metrics) ObserveScrape(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(outcome).Inc()
	m.ScrapeDuration.Observe(d.Seconds())
}

// IncAttempt counts one navigation attempt under its result code.
func (m *Metrics) IncAttempt(result string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(result).Inc()
}

// IncInFlight marks a scrape slot as taken.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DecInFlight marks a scrape slot as released.
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// ObserveRateLimitWait records time spent waiting on the per-host limiter.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.Observe(d.Seconds())
}

// IncBrowserLaunch counts a browser launch or relaunch.
func (m *Metrics) IncBrowserLaunch() {
	if m == nil {
		return
	}
	m.BrowserLaunches.Inc()
}

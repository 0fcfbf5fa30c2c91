package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecording(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveScrape(OutcomeSuccess, 2*time.Second)
	m.ObserveScrape(OutcomeFailed, time.Second)
	m.ObserveScrape(OutcomeSuccess, time.Second)
	m.IncAttempt("ok")
	m.IncAttempt("SCRAPE_TIMEOUT")
	m.IncAttempt("SCRAPE_TIMEOUT")
	m.IncInFlight()
	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()
	m.IncBrowserLaunch()

	if got := testutil.ToFloat64(m.ScrapesTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("success scrapes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("SCRAPE_TIMEOUT")); got != 2 {
		t.Errorf("timeout attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BrowserLaunches); got != 1 {
		t.Errorf("launches = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveScrape(OutcomeSuccess, time.Second)
	m.IncAttempt("ok")
	m.IncInFlight()
	m.DecInFlight()
	m.ObserveRateLimitWait(time.Second)
	m.IncBrowserLaunch()
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}

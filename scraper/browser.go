package scraper

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/models"
)

const pingTimeout = 5 * time.Second

// browserHandle owns the shared browser. It launches lazily, pings the
// connection on every acquire and relaunches a browser that stopped
// answering.
type browserHandle struct {
	cfg     config.BrowserConfig
	metrics *metrics.Metrics

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func newBrowserHandle(cfg config.BrowserConfig, m *metrics.Metrics) *browserHandle {
	return &browserHandle{cfg: cfg, metrics: m}
}

// acquire returns a connected browser. headless only matters when a launch
// is needed.
func (h *browserHandle) acquire(headless bool) (*rod.Browser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		_, err := h.browser.Timeout(pingTimeout).Version()
		if err == nil {
			return h.browser, nil
		}
		slog.Warn("browser stopped responding, relaunching", "error", err)
		_ = h.closeLocked()
	}

	l := h.newLauncher(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserUnavailable,
			"failed to launch browser",
			err,
		)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserUnavailable,
			"failed to connect to browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", headless)

	h.launcher, h.browser = l, browser
	h.metrics.IncBrowserLaunch()
	return browser, nil
}

func (h *browserHandle) newLauncher(headless bool) *launcher.Launcher {
	l := launcher.New().
		Headless(headless).
		NoSandbox(h.cfg.NoSandbox)

	if h.cfg.BrowserBin != "" {
		l = l.Bin(h.cfg.BrowserBin)
	}
	if h.cfg.Proxy != "" {
		l = l.Proxy(h.cfg.Proxy)
	}

	// Hide the automation markers headless Chrome exposes by default.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// withPage opens a tab, runs fn on it and always closes the tab.
func (h *browserHandle) withPage(browser *rod.Browser, fn func(*rod.Page) error) error {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserUnavailable,
			"failed to open page",
			err,
		)
	}
	// page carries no request context, so closing works after a timeout.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("failed to close page", "error", closeErr)
		}
	}()
	return fn(page)
}

// running reports whether a browser was launched and not closed since. It
// does not ping; a dead browser is only noticed by the next acquire.
func (h *browserHandle) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.browser != nil
}

// close shuts the browser down and clears the handle. It is a no-op when
// nothing is running.
func (h *browserHandle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeLocked()
}

func (h *browserHandle) closeLocked() error {
	if h.browser == nil {
		return nil
	}
	browser, l := h.browser, h.launcher
	h.browser, h.launcher = nil, nil

	err := browser.Close()
	if err != nil {
		l.Kill()
	}
	l.Cleanup()
	slog.Info("browser closed")

	if err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserUnavailable,
			"browser did not close cleanly",
			err,
		)
	}
	return nil
}

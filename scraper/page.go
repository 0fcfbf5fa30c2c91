package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/models"
	"github.com/ysmood/gson"
)

// rodFetcher renders pages in the shared browser.
type rodFetcher struct {
	browser    *browserHandle
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
}

func newRodFetcher(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, m *metrics.Metrics) *rodFetcher {
	return &rodFetcher{
		browser:    newBrowserHandle(browserCfg, m),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}
}

// Fetch renders req.URL and returns its HTML.
//
// Order matters: stealth and the hijack router only apply to navigations
// started after they are installed, and the idle waiter must be listening
// before Navigate or it reports idle immediately.
func (f *rodFetcher) Fetch(ctx context.Context, req FetchRequest) (*Page, error) {
	browser, err := f.browser.acquire(req.Headless)
	if err != nil {
		return nil, err
	}

	var out *Page
	err = f.browser.withPage(browser, func(page *rod.Page) error {
		p := page.Context(ctx)

		if f.browserCfg.Stealth {
			if _, evalErr := p.EvalOnNewDocument(stealth.JS); evalErr != nil {
				slog.Warn("stealth injection failed, proceeding without stealth",
					"error", evalErr,
				)
			}
		}

		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: req.UserAgent}); err != nil {
			return categorizeError(err, "failed to set user agent")
		}
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             f.browserCfg.ViewportWidth,
			Height:            f.browserCfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return categorizeError(err, "failed to set viewport")
		}
		if len(f.scraperCfg.ExtraHeaders) > 0 {
			if hdrErr := (proto.NetworkSetExtraHTTPHeaders{
				Headers: toHeadersMap(f.scraperCfg.ExtraHeaders),
			}).Call(p); hdrErr != nil {
				slog.Warn("setting extra headers failed, proceeding without them",
					"error", hdrErr,
				)
			}
		}

		router := setupHijack(page, f.scraperCfg.BlockedResourceTypes, f.scraperCfg.BlockAds)
		if router != nil {
			defer func() { _ = router.Stop() }()
		}

		// WaitRequestIdle and HijackRequests both drive the Fetch domain and
		// conflict on recent Chromium, so a hijacked page waits for the DOM
		// to settle instead.
		var waitIdle func()
		if router == nil {
			waitIdle = p.WaitRequestIdle(f.scraperCfg.NetworkIdle, nil, nil, nil)
		}

		if err := p.Navigate(req.URL); err != nil {
			return categorizeError(err, "navigation to target URL failed")
		}

		if waitIdle != nil {
			waitIdle()
		} else if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", stableErr,
			)
		}
		if ctx.Err() != nil {
			return categorizeError(ctx.Err(), "timed out waiting for the page to load")
		}

		if req.WaitForSelector != "" {
			if _, err := p.Element(req.WaitForSelector); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return models.NewScrapeError(
						models.ErrCodeSelectorNotFound,
						"selector "+req.WaitForSelector+" did not appear before the timeout",
						err,
					)
				}
				return categorizeError(err, "waiting for selector failed")
			}
		}

		html, err := p.HTML()
		if err != nil {
			return categorizeError(err, "failed to read page HTML")
		}

		finalURL := evalStringOrEmpty(p, `() => window.location.href`)
		if finalURL == "" {
			finalURL = req.URL
		}
		out = &Page{HTML: html, FinalURL: finalURL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *rodFetcher) Connected() bool {
	return f.browser.running()
}

func (f *rodFetcher) Close() error {
	return f.browser.close()
}

// evalStringOrEmpty evaluates a JS function and returns its string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

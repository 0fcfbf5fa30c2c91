package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/models"
	"github.com/use-agent/gleaner/scraper"
)

// Scraper is the engine surface the handlers need.
type Scraper interface {
	ScrapePage(ctx context.Context, rawURL string, opts models.ScrapingOptions) (*scraper.Result, error)
	Stats() models.EngineStats
}

// Renderer turns page HTML into Markdown.
type Renderer interface {
	Markdown(rawHTML, sourceURL string) (string, error)
}

// scrapeOne scrapes targetURL and renders the requested format.
func scrapeOne(ctx context.Context, sc Scraper, rd Renderer, targetURL string, opts models.ScrapingOptions, format string) (*models.ScrapeResponse, error) {
	totalStart := time.Now()

	result, err := sc.ScrapePage(ctx, targetURL, opts)
	scrapeMs := time.Since(totalStart).Milliseconds()
	if err != nil {
		return nil, err
	}

	resp := &models.ScrapeResponse{
		Success:  true,
		URL:      targetURL,
		FinalURL: result.FinalURL,
		Data:     result.Data,
	}

	var renderMs int64
	if format == models.FormatMarkdown {
		renderStart := time.Now()
		md, err := rd.Markdown(result.HTML, result.FinalURL)
		renderMs = time.Since(renderStart).Milliseconds()
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to render markdown", err)
		}
		resp.Markdown = md
	}

	resp.Timing = models.TimingInfo{
		TotalMs:  time.Since(totalStart).Milliseconds(),
		ScrapeMs: scrapeMs,
		RenderMs: renderMs,
	}
	return resp, nil
}

// failureResponse records a failed scrape inside a batch or blog job.
func failureResponse(targetURL string, err error) *models.ScrapeResponse {
	return &models.ScrapeResponse{
		Success: false,
		URL:     targetURL,
		Error:   models.DetailOf(err),
	}
}

// respondError maps err to the matching HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, targetURL string, err error, timing models.TimingInfo) {
	c.JSON(mapErrorToStatus(err), models.ScrapeResponse{
		Success: false,
		URL:     targetURL,
		Error:   models.DetailOf(err),
		Timing:  timing,
	})
}

func respondInvalid(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ScrapeResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeInvalidInput,
			Message: msg,
		},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes. Exhausted
// retries are reported by the status of their last cause.
func mapErrorToStatus(err error) int {
	code := models.CodeOf(err)
	if code == models.ErrCodeRetriesExhausted {
		code = models.CauseCode(err)
	}

	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserUnavailable:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeSelectorNotFound, models.ErrCodeExtraction:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

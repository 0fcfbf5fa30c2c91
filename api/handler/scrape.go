package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/models"
)

// Cache status values.
const (
	cacheHit  = "hit"
	cacheMiss = "miss"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
//  1. Parse and validate the request, apply defaults.
//  2. With max_age set, answer from the cache when a fresh entry exists.
//  3. Scrape, and render Markdown when asked for.
//  4. Store the result so later lookups and blog runs can reuse it.
func Scrape(sc Scraper, rd Renderer, cc cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err.Error())
			return
		}
		req.Defaults()

		ctx := c.Request.Context()
		key := cache.Key(req.URL, req.Format)

		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(ctx, key, time.Duration(req.MaxAge)*time.Millisecond); hit {
				out := *cached
				out.CacheStatus = cacheHit
				out.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, out)
				return
			}
		}

		resp, err := scrapeOne(ctx, sc, rd, req.URL, req.Options, req.Format)
		if err != nil {
			respondError(c, req.URL, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		if cc != nil {
			cc.Set(ctx, key, resp)
			if req.MaxAge > 0 {
				out := *resp
				out.CacheStatus = cacheMiss
				resp = &out
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

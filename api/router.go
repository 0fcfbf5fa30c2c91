package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/gleaner/api/handler"
	"github.com/use-agent/gleaner/api/middleware"
	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/webhook"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(sc handler.Scraper, rd handler.Renderer, cc cache.Store, jobs *handler.Jobs, notifier *webhook.Notifier, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(sc, startTime))
	v1.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(sc, rd, cc))

	protected.POST("/batch/scrape", handler.PostBatch(sc, cc, jobs, notifier))
	protected.GET("/batch/:id", handler.GetBatch(jobs))

	protected.POST("/blog/scrape", handler.PostBlog(sc, cc, jobs, notifier))
	protected.GET("/blog/:id", handler.GetBlog(jobs))

	return r
}

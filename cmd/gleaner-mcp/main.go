package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("GLEANER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("GLEANER_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GLEANER_API_KEY is required")
		os.Exit(1)
	}

	api := &apiClient{baseURL: apiURL, apiKey: apiKey, pollEvery: 2 * time.Second}

	s := server.NewMCPServer(
		"gleaner",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_url",
		mcp.WithDescription("Render a web page in a headless browser and return its title, author, publish date, tags, links and main text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page to scrape"),
		),
		mcp.WithString("format",
			mcp.Description("'data' (default) for the extracted record, or 'markdown' to also render the main article as Markdown"),
			mcp.Enum("data", "markdown"),
		),
		mcp.WithString("wait_for_selector",
			mcp.Description("CSS selector that must appear before the page is read"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Per-attempt navigation timeout in milliseconds (default: 30000)"),
			mcp.Min(1),
			mcp.Max(300000),
		),
	), handleScrapeURL(api))

	s.AddTool(mcp.NewTool("batch_scrape",
		mcp.WithDescription("Scrape several URLs and return the extracted record of each. Failed URLs are reported without stopping the rest."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to scrape (max 100)"),
			mcp.WithStringItems(),
		),
	), handleBatchScrape(api))

	s.AddTool(mcp.NewTool("scrape_blog",
		mcp.WithDescription("Scrape a blog index page, then every post it links to. Posts scraped before are skipped."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL of the blog index page"),
		),
		mcp.WithString("pattern",
			mcp.Description("Only follow links whose URL contains this text, e.g. '/posts/'"),
		),
		mcp.WithNumber("max_posts",
			mcp.Description("Maximum number of posts to follow (default: 10, max: 100)"),
			mcp.Min(1),
			mcp.Max(100),
		),
	), handleScrapeBlog(api))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/gleaner/models"
)

func handleScrapeURL(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		req := models.ScrapeRequest{
			URL:    url,
			Format: request.GetString("format", models.FormatData),
			Options: models.ScrapingOptions{
				WaitForSelector: request.GetString("wait_for_selector", ""),
				Timeout:         request.GetInt("timeout_ms", 0),
			},
		}

		var resp models.ScrapeResponse
		if err := api.post(ctx, "/api/v1/scrape", req, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(formatError(resp.Error)), nil
		}
		return mcp.NewToolResultText(formatScrape(&resp)), nil
	}
}

func handleBatchScrape(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		var created models.BatchResponse
		if err := api.post(ctx, "/api/v1/batch/scrape", models.BatchRequest{URLs: urls}, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}
		if created.ID == "" {
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		var status models.BatchStatusResponse
		if err := api.poll(ctx, "/api/v1/batch/"+created.ID, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d ok, %d failed, %d total)\n\n",
			status.ID, status.Status, status.Completed, status.Failed, status.Total)
		writeResults(&sb, status.Results)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScrapeBlog(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		req := models.BlogRequest{
			URL:      url,
			Pattern:  request.GetString("pattern", ""),
			MaxPosts: request.GetInt("max_posts", 0),
		}

		var created models.BlogResponse
		if err := api.post(ctx, "/api/v1/blog/scrape", req, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("blog request failed: %v", err)), nil
		}
		if created.ID == "" {
			return mcp.NewToolResultError("blog job creation failed"), nil
		}

		var status models.BlogStatusResponse
		if err := api.poll(ctx, "/api/v1/blog/"+created.ID, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling blog job failed: %v", err)), nil
		}
		if status.Error != nil {
			return mcp.NewToolResultError(formatError(status.Error)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Blog %s: %s (%d scraped, %d skipped, %d failed)\n\n",
			status.ID, status.Status, status.ScrapedCount, status.SkippedCount, status.FailedCount)
		writeResults(&sb, status.Results)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

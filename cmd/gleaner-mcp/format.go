package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/gleaner/models"
)

func formatError(e *models.ErrorDetail) string {
	if e == nil {
		return "scrape failed"
	}
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Cause != "" {
		msg += ": " + e.Cause
	}
	return msg
}

// formatScrape renders one successful response as plain text with a short
// header. The Markdown rendering replaces the plain content when present.
func formatScrape(resp *models.ScrapeResponse) string {
	var sb strings.Builder
	d := resp.Data
	if d == nil {
		return resp.Markdown
	}

	fmt.Fprintf(&sb, "Title: %s\n", d.Title)
	source := resp.FinalURL
	if source == "" {
		source = resp.URL
	}
	fmt.Fprintf(&sb, "Source: %s\n", source)
	if d.Author != "" {
		fmt.Fprintf(&sb, "Author: %s\n", d.Author)
	}
	if d.PublishedAt != nil {
		fmt.Fprintf(&sb, "Published: %s\n", d.PublishedAt.Format(time.DateOnly))
	}
	if len(d.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(d.Tags, ", "))
	}
	fmt.Fprintf(&sb, "Words: %d (%d min read)\n\n", d.WordCount(), d.ReadingTime())

	if resp.Markdown != "" {
		sb.WriteString(resp.Markdown)
	} else {
		sb.WriteString(d.Content)
	}

	if len(d.Links) > 0 {
		sb.WriteString("\n\nLinks:\n")
		for _, l := range d.Links {
			sb.WriteString("- " + l + "\n")
		}
	}
	return sb.String()
}

func writeResults(sb *strings.Builder, results []*models.ScrapeResponse) {
	for i, r := range results {
		if r == nil {
			continue
		}
		if !r.Success {
			fmt.Fprintf(sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, r.URL, formatError(r.Error))
			continue
		}
		title := ""
		if r.Data != nil {
			title = r.Data.Title
		}
		fmt.Fprintf(sb, "--- [%d] %s ---\n%s\n\n", i+1, title, formatScrape(r))
	}
}

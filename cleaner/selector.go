package cleaner

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Ordered candidate selectors for each extracted field. Earlier entries win.
var (
	titleSelectors = compileAll(
		"title",
		"h1",
		`[property="og:title"]`,
		`[name="title"]`,
		".title",
		".headline",
	)

	authorSelectors = compileAll(
		`[rel="author"]`,
		".author",
		".byline",
		`[property="article:author"]`,
		`[name="author"]`,
	)

	dateSelectors = compileAll(
		`[property="article:published_time"]`,
		`[property="og:published_time"]`,
		"time[datetime]",
		".published",
		".date",
	)

	tagSelectors = compileAll(
		".tag",
		".category",
		`[rel="tag"]`,
		".label",
	)

	contentSelectors = compileAll(
		"article",
		".content",
		".post",
		".entry",
		`[role="main"]`,
		"main",
	)

	// noiseSelector matches elements that never contribute to body text.
	noiseSelector = cascadia.MustCompile("script, style, nav, header, footer, aside, .ad, .advertisement, .sidebar")

	anchorSelector = cascadia.MustCompile("a[href]")
	bodySelector   = cascadia.MustCompile("body")
	metaSelector   = cascadia.MustCompile("meta")
)

func compileAll(selectors ...string) []cascadia.Selector {
	out := make([]cascadia.Selector, len(selectors))
	for i, s := range selectors {
		out[i] = cascadia.MustCompile(s)
	}
	return out
}

// ValidateSelector reports whether selector is a valid CSS selector group.
// An empty selector is valid and means "do not wait".
func ValidateSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return nil
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

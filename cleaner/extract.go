package cleaner

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
	"github.com/use-agent/gleaner/models"
)

const (
	// Untitled is returned when no title candidate matches.
	Untitled = "Untitled"

	maxTags  = 10
	maxLinks = 50

	// wordsPerMinute is the reading speed behind metadata.readingTime.
	wordsPerMinute = 200
)

// ExtractHTML sanitizes rawHTML, parses it, and runs the extraction chain.
// It also returns the sanitized HTML the data was extracted from.
// pageURL resolves relative links; now stamps metadata.scrapedAt.
func ExtractHTML(rawHTML string, pageURL *url.URL, now time.Time) (*models.ScrapedData, string, error) {
	clean := SanitizeHTML(rawHTML)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return nil, "", models.NewScrapeError(models.ErrCodeExtraction, "failed to parse page HTML", err)
	}
	return Extract(doc, pageURL, now), clean, nil
}

// Extract runs every field extractor over an already sanitized document.
// The document is not modified.
func Extract(doc *goquery.Document, pageURL *url.URL, now time.Time) *models.ScrapedData {
	data := &models.ScrapedData{
		Title:    ExtractTitle(doc),
		Content:  ExtractBody(doc),
		Author:   ExtractAuthor(doc),
		Tags:     ExtractTags(doc),
		Links:    ExtractLinks(doc, pageURL),
		Metadata: ExtractMetadata(doc),
	}
	if published, ok := ExtractPublishedAt(doc); ok {
		data.PublishedAt = &published
	}

	words := CountWords(data.Content)
	data.Metadata[models.MetaScrapedAt] = now.UTC().Format(time.RFC3339)
	data.Metadata[models.MetaWordCount] = words
	data.Metadata[models.MetaReadingTime] = ReadingTime(words)
	return data
}

// CountWords returns the number of whitespace-separated tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime returns the reading time in whole minutes, rounded up.
func ReadingTime(words int) int {
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// ExtractTitle returns the first non-empty title candidate, or Untitled.
// <title> is consulted before <h1>.
func ExtractTitle(doc *goquery.Document) string {
	if v, ok := firstValue(doc.Selection, titleSelectors, contentOrText); ok {
		return v
	}
	return Untitled
}

// ExtractAuthor returns the first non-empty author candidate, or "".
func ExtractAuthor(doc *goquery.Document) string {
	v, _ := firstValue(doc.Selection, authorSelectors, contentOrText)
	return v
}

// ExtractPublishedAt returns the first candidate date that parses.
func ExtractPublishedAt(doc *goquery.Document) (time.Time, bool) {
	for _, sel := range dateSelectors {
		raw := dateValue(doc.FindMatcher(sel).First())
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractTags collects distinct non-empty tag texts in document order,
// scanning the tag selectors in priority order.
func ExtractTags(doc *goquery.Document) []string {
	tags := make([]string, 0, maxTags)
	seen := make(map[string]struct{})
	for _, sel := range tagSelectors {
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			tag := strings.TrimSpace(s.Text())
			if tag == "" {
				return true
			}
			if _, dup := seen[tag]; !dup {
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
			return len(tags) < maxTags
		})
		if len(tags) >= maxTags {
			break
		}
	}
	return tags
}

// ExtractLinks resolves every anchor against pageURL and keeps absolute
// http(s) URLs that carry no fragment, deduplicated in first-seen order.
func ExtractLinks(doc *goquery.Document, pageURL *url.URL) []string {
	links := make([]string, 0)
	seen := make(map[string]struct{})

	doc.FindMatcher(anchorSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.Contains(href, "#") {
			return true
		}

		resolved, err := pageURL.Parse(href)
		if err != nil {
			return true
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}

		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
		return len(links) < maxLinks
	})

	return links
}

// ExtractBody returns the sanitized text of the main content container.
// Noise elements are removed from a copy of the document first; when no
// container yields text, the whole body is used.
func ExtractBody(doc *goquery.Document) string {
	work := doc.Selection.Clone()
	work.FindMatcher(noiseSelector).Remove()

	for _, sel := range contentSelectors {
		if text := strings.TrimSpace(work.FindMatcher(sel).First().Text()); text != "" {
			return SanitizeContent(text)
		}
	}
	return SanitizeContent(work.FindMatcher(bodySelector).Text())
}

// ExtractMetadata collects Open Graph and Twitter Card properties with their
// prefixes stripped, plus the description, author and keywords meta tags.
// Later tags overwrite earlier ones with the same key.
func ExtractMetadata(doc *goquery.Document) map[string]any {
	meta := make(map[string]any)
	metas := doc.FindMatcher(metaSelector)

	collectPrefixed := func(prefix string) {
		metas.Each(func(_ int, s *goquery.Selection) {
			content, ok := s.Attr("content")
			if !ok {
				return
			}
			for _, attr := range []string{"property", "name"} {
				key, _ := s.Attr(attr)
				if rest, found := strings.CutPrefix(strings.ToLower(key), prefix); found && rest != "" {
					meta[rest] = strings.TrimSpace(content)
					return
				}
			}
		})
	}
	collectPrefixed("og:")
	collectPrefixed("twitter:")

	metas.Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		content = strings.TrimSpace(content)
		switch strings.ToLower(name) {
		case "description":
			meta["description"] = content
		case "author":
			meta["author"] = content
		case "keywords":
			meta["keywords"] = splitKeywords(content)
		}
	})

	return meta
}

func splitKeywords(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// firstValue evaluates candidates in order against the first element each
// selector matches and returns the first non-empty value.
func firstValue(root *goquery.Selection, candidates []cascadia.Selector, value func(*goquery.Selection) string) (string, bool) {
	for _, sel := range candidates {
		match := root.FindMatcher(sel).First()
		if match.Length() == 0 {
			continue
		}
		if v := value(match); v != "" {
			return v, true
		}
	}
	return "", false
}

// contentOrText prefers a content attribute (meta tags) over element text.
func contentOrText(s *goquery.Selection) string {
	if v, ok := s.Attr("content"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(s.Text())
}

func dateValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"datetime", "content"} {
		if v, ok := s.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(s.Text())
}

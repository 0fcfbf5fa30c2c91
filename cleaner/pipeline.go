package cleaner

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/gleaner/models"
)

// Cleaner renders scraped pages for human and LLM consumption:
//
//	Stage 1 (readability): isolate the main article
//	Stage 2 (markdown):    convert the article HTML to Markdown
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Markdown renders the main article of rawHTML as Markdown. When readability
// cannot find an article the whole page is converted instead.
func (c *Cleaner) Markdown(rawHTML string, sourceURL string) (string, error) {
	article, _ := ExtractArticle(rawHTML, sourceURL)

	domain := ""
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}

	md, err := toMarkdown(c.mdConverter, article.Content, domain)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeExtraction, "markdown conversion failed", err)
	}

	md = strings.TrimSpace(md)
	if article.Title != "" && !strings.HasPrefix(md, "# ") {
		md = "# " + article.Title + "\n\n" + md
	}
	return md, nil
}

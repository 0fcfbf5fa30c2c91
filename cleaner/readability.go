package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minArticleLength is the minimum TextContent length (in characters) for a
// readability article to be trusted. Shorter output usually means the
// algorithm latched onto a teaser or a cookie banner.
const minArticleLength = 50

// ExtractArticle runs the Mozilla Readability algorithm on rawHTML.
//
// The boolean is false when readability failed or produced too little text;
// the returned article then carries rawHTML as its Content so callers can
// still render something.
func ExtractArticle(rawHTML string, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, using full page",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, using full page",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minArticleLength {
		slog.Debug("readability: article too short, using full page",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return fallbackArticle(rawHTML), false
	}

	return article, true
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{Content: rawHTML}
}

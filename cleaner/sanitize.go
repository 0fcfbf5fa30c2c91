package cleaner

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// SanitizeHTML removes <script> and <style> elements together with their
// content, drops HTML comments, and collapses every whitespace run to a
// single space. Everything else is passed through byte for byte.
func SanitizeHTML(rawHTML string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(rawHTML))
	var buf bytes.Buffer
	buf.Grow(len(rawHTML))
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(reWhitespace.ReplaceAllString(buf.String(), " "))
		case html.CommentToken:
			continue
		case html.StartTagToken, html.SelfClosingTagToken:
			// The tokenizer reads a script or style body as raw text even
			// when the start tag is written self-closing, as browsers do.
			if isStripped(tokenizer) {
				skipDepth++
				continue
			}
		case html.EndTagToken:
			if isStripped(tokenizer) {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
		}
		if skipDepth == 0 {
			buf.Write(tokenizer.Raw())
		}
	}
}

// isStripped reports whether the current tag token opens or closes an
// element that SanitizeHTML drops entirely.
func isStripped(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// SanitizeContent normalizes extracted text: whitespace runs inside a line
// become one space, lines are trimmed, blank lines are dropped, and runes
// that are neither printable nor a newline are removed.
//
// SanitizeContent(SanitizeContent(s)) == SanitizeContent(s) for every s.
func SanitizeContent(text string) string {
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case unicode.IsSpace(r):
			return ' '
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

package processor

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRE    = regexp.MustCompile(`<[^>]+>`)
	urlRE        = regexp.MustCompile(`https?://\S+`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// CleanText normalizes raw post content for filtering and similarity:
// strips HTML tags, unescapes entities, removes URLs, collapses whitespace.
func CleanText(text string) string {
	text = htmlTagRE.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = urlRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

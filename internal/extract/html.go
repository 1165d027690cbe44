package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	// \p{Z} catches the non-breaking spaces that entity decoding produces.
	spaceRe = regexp.MustCompile(`[\s\p{Z}]+`)
)

// CleanHTML strips markup from an HTML payload and returns collapsed plain
// text. Malformed markup never produces an error; invalid UTF-8 bytes are
// replaced rather than rejected.
func CleanHTML(raw string) string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "�")
	}

	// Remove script and style blocks entirely, then strip remaining tags.
	text := scriptStyleRe.ReplaceAllString(raw, " ")
	text = tagRe.ReplaceAllString(text, " ")

	// Decode entities, collapse whitespace runs to single spaces.
	text = html.UnescapeString(text)
	text = spaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

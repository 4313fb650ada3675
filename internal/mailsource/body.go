package mailsource

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()

	blockTags = regexp.MustCompile(
		`(?i)<\s*(br|/p|/div|/tr|/li|/h[1-6])\s*/?>`,
	)
	hiddenBlocks = regexp.MustCompile(
		`(?is)<(style|script|head)[^>]*>.*?</(style|script|head)>`,
	)
	blankRuns = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
	spaceRuns = regexp.MustCompile(`[ \t\p{Zs}]+`)
)

// PlainText converts an HTML body to readable plain text. Block level tags
// become line breaks and runs of blank lines are collapsed.
func PlainText(htmlBody string) string {
	s := hiddenBlocks.ReplaceAllString(htmlBody, "")
	s = blockTags.ReplaceAllString(s, "$0\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// BodyText picks the best plain text rendering of a message: the plain
// part, else the stripped HTML part, else the snippet.
func BodyText(plain, htmlBody, snippet string) string {
	if strings.TrimSpace(plain) != "" {
		return plain
	}
	if strings.TrimSpace(htmlBody) != "" {
		if text := PlainText(htmlBody); text != "" {
			return text
		}
	}

	return html.UnescapeString(snippet)
}

// Truncate shortens s to at most limit runes, appending "..." when it cut
// anything. It never splits a multi-byte character.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "..."
		}
		n++
	}

	return s
}

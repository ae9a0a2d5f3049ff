// Package ai holds provider-independent post-processing for generated content.
package ai

import (
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("^```[a-zA-Z]*\\s*\\n")
	fenceClose = regexp.MustCompile("\\n?```\\s*$")
	// chatty lead-ins models prepend before the article body
	preamble = regexp.MustCompile(`(?i)^(sure|certainly|of course|here is|here's|elbette|tabii ki|işte|İşte)[^\n]*\n+`)
	htmlBody = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
)

// CleanContent strips code fences, conversational preambles and full-document
// HTML wrappers so only the article body remains.
func CleanContent(text string) string {
	text = strings.TrimSpace(text)
	if fenceOpen.MatchString(text) {
		text = fenceOpen.ReplaceAllString(text, "")
		text = fenceClose.ReplaceAllString(text, "")
	}
	text = preamble.ReplaceAllString(text, "")
	if m := htmlBody.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	return strings.TrimSpace(text)
}

// LooksLikeHTML reports whether text already carries block-level HTML markup.
func LooksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	for _, tag := range []string{"<p>", "<p ", "<h1", "<h2", "<div", "<ul", "<article"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

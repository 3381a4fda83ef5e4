// Package htmlsanitize strips markup from user-entered text before it is
// stored. Names and plates end up in other users' list views, so no HTML
// is allowed through.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag and returns the remaining text with HTML
// entities decoded and surrounding space trimmed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

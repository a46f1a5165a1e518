// Package sanitize scrubs free text that arrives through the
// unauthenticated report link before it is stored.
package sanitize

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Text strips markup from customer-supplied text such as authorization
// notes. Tags are removed, common entities decoded, and the result stripped
// once more so an entity-encoded tag cannot survive the first pass.
func Text(s string) string {
	out := tagPattern.ReplaceAllString(s, "")
	out = strings.ReplaceAll(out, "&lt;", "<")
	out = strings.ReplaceAll(out, "&gt;", ">")
	out = strings.ReplaceAll(out, "&amp;", "&")
	out = strings.ReplaceAll(out, "&quot;", "\"")
	out = strings.ReplaceAll(out, "&#39;", "'")
	out = tagPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

package posts

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// A post reference is a slash followed by digits at the start of the
	// text or after a non-word character, so fractions like "10/10" stay
	// untouched.
	postRefRe = regexp.MustCompile(`(^|\W)/(\d+)`)

	anchorRe = regexp.MustCompile(`(?s)<a\b[^>]*>.*?</a>`)
)

// Autolink rewrites post references like "/644" in an already-escaped caption
// into links to the post on domain. Existing anchors are left alone, so the
// rewrite is idempotent.
func Autolink(text, domain string) string {
	// Shield existing anchors behind placeholders so their text and hrefs
	// are never rewritten again.
	var anchors []string
	shielded := anchorRe.ReplaceAllStringFunc(text, func(a string) string {
		anchors = append(anchors, a)
		return fmt.Sprintf("\x00A%d\x00", len(anchors)-1)
	})

	linked := postRefRe.ReplaceAllString(shielded, `$1<a href="http://`+domain+`/$2">/$2</a>`)

	for i, a := range anchors {
		linked = strings.Replace(linked, fmt.Sprintf("\x00A%d\x00", i), a, 1)
	}
	return linked
}

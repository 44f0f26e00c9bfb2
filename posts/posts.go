// Package posts allocates post identifiers and renders post documents for the
// static site consuming them.
package posts

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Dir is the repository directory holding post documents.
const Dir = "_posts"

// Record accumulates the data for one post as it moves through the pipeline.
// Summary must already be HTML-escaped. Content and OGImage are filled by the
// image stage before rendering.
type Record struct {
	ID          int
	Summary     string
	CaptureDate string // "YYYY-MM-DD", empty when the photo had no usable metadata
	Content     string
	OGImage     string
}

// NextID computes the next post identifier from the existing post filenames.
// Identifiers are the trailing numeric token of "<date>-<id>.<ext>"; names
// without one are skipped. An empty collection yields 0.
func NextID(names []string) int {
	next := 0
	for _, name := range names {
		if id, ok := trailingID(name); ok && id+1 > next {
			next = id + 1
		}
	}
	return next
}

// LatestID returns the highest identifier among names, or -1 when none carry
// one.
func LatestID(names []string) int {
	latest := -1
	for _, name := range names {
		if id, ok := trailingID(name); ok && id > latest {
			latest = id
		}
	}
	return latest
}

// trailingID parses the numeric token between the last '-' and the first '.'.
func trailingID(name string) (int, bool) {
	base := strings.SplitN(name, ".", 2)[0]
	tail := base[strings.LastIndex(base, "-")+1:]
	id, err := strconv.Atoi(tail)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// ListNames returns the filenames under <root>/_posts.
func ListNames(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, Dir))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Filename builds the post filename for id, dated to the publication day.
func Filename(id int, published time.Time) string {
	return fmt.Sprintf("%s-%d.md", published.Format("2006-01-02"), id)
}

// Render produces the complete post document: YAML front matter followed by
// an HTML body. The display date is the capture date when known, otherwise
// the publication time.
func Render(rec Record, domain string, published time.Time) (string, error) {
	if rec.Content == "" {
		return "", fmt.Errorf("render post %d: no content", rec.ID)
	}

	display := published
	if rec.CaptureDate != "" {
		d, err := time.Parse("2006-01-02", rec.CaptureDate)
		if err != nil {
			return "", fmt.Errorf("render post %d: bad capture date %q", rec.ID, rec.CaptureDate)
		}
		display = d
	}

	summary := rec.Summary
	if summary == "" {
		summary = fmt.Sprintf("Post #%d", rec.ID)
	}

	lines := []string{
		"---",
		"layout: post",
		fmt.Sprintf("summary: '%s'", summary),
	}
	if rec.OGImage != "" {
		lines = append(lines, "og_image: "+rec.OGImage)
	}
	lines = append(lines,
		"---",
		"",
		"<p>",
		"  <time>",
		fmt.Sprintf(`    <a href="/%d">%s</a>`, rec.ID, display.Format("January 2, 2006")),
		"  </time>",
		fmt.Sprintf(`  <a href="/%d">`, rec.ID),
		"    "+rec.Content,
		"  </a>",
	)
	if rec.Summary != "" {
		lines = append(lines, fmt.Sprintf("  <span>%s</span>", Autolink(rec.Summary, domain)))
	}
	lines = append(lines, "</p>", "")
	return strings.Join(lines, "\n"), nil
}

// ImgTag builds the responsive <img> markup for a post's uploaded variants,
// which must be in ascending width order. The second-smallest variant is the
// default src; alt is present only when the post has a caption.
func ImgTag(id int, widths []int, summary, assetsURL string) string {
	variantURL := func(w int) string {
		return fmt.Sprintf("%s/%d-%d.jpg", assetsURL, id, w)
	}

	srcset := make([]string, len(widths))
	for i, w := range widths {
		srcset[i] = fmt.Sprintf("%s %dw", variantURL(w), w)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<img src="%s" `, variantURL(widths[1]))
	fmt.Fprintf(&b, `srcset="%s" `, strings.Join(srcset, ", "))
	b.WriteString(`sizes="(min-width: 700px) 50vw, calc(100vw - 2rem)" `)
	if summary != "" {
		fmt.Fprintf(&b, `alt="%s" `, summary)
	}
	b.WriteString("/>")
	return b.String()
}

// Package notify implements the digest mailer: it emails subscribers when
// posts have been published since the last digest.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/photopost/journal"
	"github.com/eringen/photopost/posts"
)

// Recipient is one digest subscriber with their message templates. Templates
// may use the {n}, {has}, {post}, {it}, and {posts} placeholders.
type Recipient struct {
	Address string `json:"address"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type recipientsFile struct {
	Recipients []Recipient `json:"recipients"`
}

// Config locates the mail API and the post listing.
type Config struct {
	APIURL         string // Mailgun-style messages endpoint
	APIKey         string
	From           string
	ReplyTo        string
	Domain         string // blog domain, used for the subject and post links
	BlogPath       string
	RecipientsPath string
}

// Notifier computes and sends digest mail.
type Notifier struct {
	cfg     Config
	journal *journal.Journal
	log     *zap.Logger
	client  *http.Client
}

// New creates a Notifier over the given journal.
func New(cfg Config, j *journal.Journal, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		cfg:     cfg,
		journal: j,
		log:     log,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Run sends one digest if any posts are newer than the watermark, then
// advances the watermark. New posts are detected from the _posts listing, so
// posts pushed outside the webhook are counted too. A fresh journal only
// establishes the watermark; nothing is sent for posts that predate it.
func (n *Notifier) Run(ctx context.Context) error {
	names, err := posts.ListNames(n.cfg.BlogPath)
	if err != nil {
		return err
	}
	latest := posts.LatestID(names)
	if latest < 0 {
		return nil
	}

	last, err := n.journal.LastNotified()
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	if last < 0 {
		n.log.Info("initializing digest watermark", zap.Int("latest", latest))
		return n.journal.SetLastNotified(latest)
	}

	count := latest - last
	if count <= 0 {
		return nil
	}

	recipients, err := loadRecipients(n.cfg.RecipientsPath)
	if err != nil {
		return err
	}

	entries, err := n.journal.Since(last)
	if err != nil {
		// The listing is an enrichment; a bare count still makes a
		// useful digest.
		n.log.Warn("journal read failed", zap.Error(err))
		entries = nil
	}
	for _, r := range recipients {
		if err := n.send(ctx, r, count, entries); err != nil {
			return fmt.Errorf("notify %s: %w", r.Address, err)
		}
	}

	if err := n.journal.SetLastNotified(latest); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	n.log.Info("digest sent", zap.Int("new_posts", count), zap.Int("recipients", len(recipients)))
	return nil
}

// expand fills the pluralization and listing placeholders of a template.
func expand(tpl string, count int, listing string) string {
	has, post, it := "have", "posts", "them"
	if count == 1 {
		has, post, it = "has", "post", "it"
	}
	return strings.NewReplacer(
		"{n}", strconv.Itoa(count),
		"{has}", has,
		"{post}", post,
		"{it}", it,
		"{posts}", listing,
	).Replace(tpl)
}

// postListing renders one line per new post: the permalink, and the caption
// when there is one. Captions in the journal are unescaped; the HTML listing
// escapes them, the plain-text one does not.
func postListing(entries []journal.Entry, domain string, escaped bool) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("http://%s/%d", domain, e.ID)
		if e.Summary != "" {
			summary := e.Summary
			if escaped {
				summary = html.EscapeString(summary)
			}
			line += " - " + summary
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (n *Notifier) send(ctx context.Context, r Recipient, count int, entries []journal.Entry) error {
	form := url.Values{}
	form.Set("to", r.Address)
	form.Set("from", n.cfg.From)
	form.Set("subject", "New photos on "+n.cfg.Domain)
	form.Set("text", expand(r.Text, count, postListing(entries, n.cfg.Domain, false)))
	form.Set("html", expand(r.HTML, count, postListing(entries, n.cfg.Domain, true)))
	if n.cfg.ReplyTo != "" {
		form.Set("h:Reply-To", n.cfg.ReplyTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth("api", n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail api status %d", resp.StatusCode)
	}
	return nil
}

func loadRecipients(path string) ([]Recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	var f recipientsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse recipients: %w", err)
	}
	return f.Recipients, nil
}

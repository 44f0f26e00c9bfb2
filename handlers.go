package photopost

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/photopost/journal"
	"github.com/eringen/photopost/posts"
)

const (
	maxAttachmentSize = 20 << 20
	uploadTimeout     = 45 * time.Second
	syncTimeout       = 60 * time.Second
)

// handleUpload runs the full ingestion pipeline for one emailed photo:
// authorize, pull the site repository, allocate the next identifier, resize,
// publish the variants, render and write the post, then commit and push.
// Callers learn nothing beyond the status code.
func (a *App) handleUpload(c echo.Context) error {
	if !a.limiter.Allow(c.RealIP()) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	user, pass, ok := c.Request().BasicAuth()
	if !ok {
		a.Log.Info("upload without credentials", zap.String("ip", c.RealIP()))
		return c.NoContent(http.StatusUnauthorized)
	}
	from := c.FormValue("from")
	if !a.authorize(from, user, pass) {
		a.Log.Info("unauthorized upload", zap.String("from", from), zap.String("ip", c.RealIP()))
		return c.NoContent(http.StatusForbidden)
	}

	fh, err := c.FormFile(a.Config.AttachmentField)
	if err != nil {
		return a.fail(c, "attachment", -1, err)
	}
	if fh.Size > maxAttachmentSize {
		return a.fail(c, "attachment", -1, fmt.Errorf("attachment too large: %d bytes", fh.Size))
	}
	src, err := fh.Open()
	if err != nil {
		return a.fail(c, "attachment", -1, err)
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		return a.fail(c, "attachment", -1, err)
	}

	a.pipelineMu.Lock()
	defer a.pipelineMu.Unlock()

	// Once authorized, the pipeline runs to completion or failure on its
	// own clock; a webhook caller disconnecting must not cancel uploads or
	// the push midway.
	ctx := context.Background()

	syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	err = a.Repo.Pull(syncCtx)
	cancel()
	if err != nil {
		return a.fail(c, "pull", -1, err)
	}

	names, err := posts.ListNames(a.Config.BlogPath)
	if err != nil {
		return a.fail(c, "allocate", -1, err)
	}
	oid := posts.NextID(names)
	a.Log.Info("making image post", zap.Int("post", oid), zap.String("from", from))

	subject := c.FormValue("subject")
	rec := posts.Record{
		ID:      oid,
		Summary: html.EscapeString(subject),
	}

	img, err := processImage(data)
	if err != nil {
		return a.fail(c, "image", oid, err)
	}
	rec.CaptureDate = img.CaptureDate

	widths := make([]int, len(img.Variants))
	for i, v := range img.Variants {
		key := fmt.Sprintf("%d-%d.jpg", oid, v.Width)
		a.Log.Info("uploading variant", zap.String("key", key), zap.Int("bytes", len(v.Data)))
		putCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		err := a.Store.Put(putCtx, key, v.Data, "image/jpeg")
		cancel()
		if err != nil {
			return a.fail(c, "publish", oid, err)
		}
		widths[i] = v.Width
	}

	rec.Content = posts.ImgTag(oid, widths, rec.Summary, a.Config.AssetsURL)
	rec.OGImage = fmt.Sprintf("%d-%d.jpg", oid, widths[len(widths)-1])

	now := time.Now()
	doc, err := posts.Render(rec, a.Config.Domain, now)
	if err != nil {
		return a.fail(c, "render", oid, err)
	}
	name := posts.Filename(oid, now)
	if err := a.Site.Write(name, []byte(doc)); err != nil {
		return a.fail(c, "write", oid, err)
	}

	syncCtx, cancel = context.WithTimeout(ctx, syncTimeout)
	err = a.Repo.CommitAndPush(syncCtx, []string{posts.Dir}, fmt.Sprintf("Add post %d", oid))
	cancel()
	if err != nil {
		return a.fail(c, "push", oid, err)
	}

	if a.Journal != nil {
		// The journal keeps the caption unescaped; escaping is a
		// rendering concern and digest mail is mostly plain text.
		entry := journal.Entry{
			ID:          oid,
			Summary:     subject,
			Sender:      bareAddress(from),
			PublishedAt: now.UTC(),
		}
		if err := a.Journal.Record(entry); err != nil {
			// The journal only feeds digest mail; never fail a
			// published post over it.
			a.Log.Warn("journal write failed", zap.Int("post", oid), zap.Error(err))
		}
	}

	a.Log.Info("post published", zap.Int("post", oid), zap.String("file", name))
	return c.NoContent(http.StatusOK)
}

// fail logs a pipeline stage failure and maps it to an opaque 500.
func (a *App) fail(c echo.Context, stage string, oid int, err error) error {
	a.Log.Error("upload failed",
		zap.String("stage", stage),
		zap.Int("post", oid),
		zap.Error(err),
	)
	return c.NoContent(http.StatusInternalServerError)
}

// Package photopost turns emailed photos into published posts on a static
// site. An inbound email webhook delivers the photo as a multipart request;
// the service authenticates it, resizes the photo into a ladder of JPEG
// variants, publishes those to object storage, renders a post document, and
// commits it to the site repository.
package photopost

import (
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/photopost/gitrepo"
	"github.com/eringen/photopost/journal"
	"github.com/eringen/photopost/posts"
	"github.com/eringen/photopost/storage"
)

// App is the central photopost application. It wires together the webhook
// server and the pipeline's capabilities.
type App struct {
	Config  Config
	Echo    *echo.Echo
	Log     *zap.Logger
	Store   storage.ObjectStore
	Repo    gitrepo.Syncer
	Site    posts.Writer
	Journal *journal.Journal

	senders *regexp.Regexp
	limiter *UploadLimiter

	// The working copy and the identifier sequence are process-wide state,
	// so only one upload pipeline runs at a time.
	pipelineMu sync.Mutex
}

// Deps are the injected collaborators. Nil capability fields are filled from
// Config: real implementations normally, no-ops in dry-run mode. Journal is
// optional; without one publishes are simply not recorded for digests.
type Deps struct {
	Log     *zap.Logger
	Store   storage.ObjectStore
	Repo    gitrepo.Syncer
	Site    posts.Writer
	Journal *journal.Journal
}

// New creates a photopost App with the given configuration and collaborators.
func New(cfg Config, deps Deps) (*App, error) {
	cfg.setDefaults()

	senders, err := compileSenders(cfg.Webhook.AuthorizedSenders)
	if err != nil {
		return nil, fmt.Errorf("photopost: authorized_senders pattern: %w", err)
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{
		Config:  cfg,
		Echo:    echo.New(),
		Log:     log,
		Store:   deps.Store,
		Repo:    deps.Repo,
		Site:    deps.Site,
		Journal: deps.Journal,
		senders: senders,
		limiter: NewUploadLimiter(10, time.Minute),
	}
	a.Echo.HideBanner = true

	if a.Store == nil {
		if cfg.DryRun {
			a.Store = storage.Discard{}
		} else {
			store, err := storage.NewS3(storage.S3Options{
				Region:          cfg.S3.Region,
				Bucket:          cfg.S3.Bucket,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
				Endpoint:        cfg.S3.Endpoint,
			})
			if err != nil {
				return nil, fmt.Errorf("photopost: init object store: %w", err)
			}
			a.Store = store
		}
	}
	if a.Repo == nil {
		if cfg.DryRun {
			a.Repo = gitrepo.Noop{}
		} else {
			a.Repo = &gitrepo.Repo{
				Path:   cfg.BlogPath,
				Remote: cfg.Remote,
				Branch: cfg.Branch,
				Name:   cfg.CommitName,
				Email:  cfg.CommitEmail,
			}
		}
	}
	if a.Site == nil {
		if cfg.DryRun {
			a.Site = posts.Discard{}
		} else {
			a.Site = posts.DirWriter{Root: cfg.BlogPath}
		}
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a, nil
}

func (a *App) setupRoutes() {
	e := a.Echo
	e.POST("/upload", a.handleUpload)
	e.GET("/healthz", a.handleHealth)
}

// Start validates required configuration and runs the HTTP server.
func (a *App) Start() error {
	if a.Config.Webhook.User == "" || a.Config.Webhook.Pass == "" {
		return fmt.Errorf("photopost: webhook credentials are required")
	}
	if a.Config.Webhook.AuthorizedSenders == "" {
		return fmt.Errorf("photopost: authorized_senders is required")
	}

	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) handleHealth(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

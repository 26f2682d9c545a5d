// Package blogsync mirrors the markdown files of a GitHub repository into a
// blogs table. A webhook triggers a sync pass that lists the repository,
// extracts each file's frontmatter, deletes rows whose file disappeared and
// upserts the rest keyed on a slug derived from the title or file name.
//
// The same Echo server exposes the synced entries read-only as JSON, RSS and
// a sitemap.
package blogsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	elog "github.com/labstack/gommon/log"

	"github.com/gitfool/blogsync/source"
)

// App wires together the store, source client, runner, cache and HTTP server.
type App struct {
	Config Config
	Echo   *echo.Echo
	Store  *Store
	Cache  *EntryCache
	Runner *Runner

	source    Source
	locker    Locker
	limiter   *WebhookLimiter
	logOut    io.Writer
	logCloser io.Closer
	logger    *log.Logger
	stopPrune func()
	closers   []io.Closer
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource replaces the GitHub client, e.g. with a fake in tests.
func WithSource(src Source) Option {
	return func(a *App) { a.source = src }
}

// WithLocker replaces the lock chosen from the configuration.
func WithLocker(l Locker) Option {
	return func(a *App) { a.locker = l }
}

// WithLogOutput sends all logs to w instead of stderr and LOG_FILE.
func WithLogOutput(w io.Writer) Option {
	return func(a *App) { a.logOut = w }
}

// New creates an App. Call Init (or Start) before use.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()
	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the store, builds the sync pipeline and registers middleware and
// routes. It does not start listening.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("blogsync: invalid config: %w", err)
	}

	if a.logOut == nil {
		a.logOut, a.logCloser = LogOutput(a.Config.LogFile)
	}
	a.logger = NewLogger(a.logOut, "blogsync")
	a.Echo.Logger.SetOutput(a.logOut)
	a.Echo.Logger.SetLevel(elog.INFO)
	a.Echo.HideBanner = true

	store, err := NewStore(ctx, a.Config.DatabaseDriver, a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("blogsync: init store: %w", err)
	}
	a.Store = store

	if a.source == nil {
		a.source = source.NewClient(source.Options{
			APIURL:  a.Config.GitHubAPIURL,
			RawURL:  a.Config.GitHubRawURL,
			Token:   a.Config.GitHubToken,
			Branch:  a.Config.Branch,
			Timeout: a.Config.HTTPTimeout,
		})
	}

	if a.locker == nil {
		if a.Config.RedisURL != "" {
			key := fmt.Sprintf("blogsync:lock:%s/%s@%s", a.Config.Owner, a.Config.Repo, a.Config.Branch)
			rl, err := NewRedisLockerFromURL(ctx, a.Config.RedisURL, key, a.Config.LockTTL)
			if err != nil {
				return fmt.Errorf("blogsync: init lock: %w", err)
			}
			a.locker = rl
			a.closers = append(a.closers, rl)
		} else {
			a.locker = NoopLocker()
		}
	}

	a.Cache = NewEntryCache(a.Store, a.Config.EntryCacheTTL)
	syncer := NewSyncer(a.source, a.Store, NewLogger(a.logOut, "sync"), WithRoot(a.Config.Root))
	a.Runner = NewRunner(RunnerConfig{
		Syncer:  syncer,
		Ref:     a.Config.Ref(),
		Locker:  a.locker,
		Runs:    a.Store,
		OnWrite: a.Cache.Invalidate,
		Logger:  NewLogger(a.logOut, "sync"),
	})
	a.limiter = NewWebhookLimiter(a.Config.WebhookRateLimit, time.Minute)
	a.stopPrune = a.Store.StartPruneScheduler(a.Config.RunRetentionDays, 24*time.Hour, NewLogger(a.logOut, "runs"))

	a.setupMiddleware()
	a.setupRoutes()
	return nil
}

// Start initializes the app and serves HTTP until the server stops.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.logger.Printf("syncing %s/%s@%s, listening on %s", a.Config.Owner, a.Config.Repo, a.Config.Branch, a.Config.Addr)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	webhook := []echo.MiddlewareFunc{}
	if a.Config.WebhookSecret != "" {
		webhook = append(webhook, verifySignature(a.Config.WebhookSecret))
	}
	e.Any("/api/webhook", a.handleWebhook, webhook...)

	e.GET("/api/entries", a.handleEntries)
	e.GET("/api/entries/:slug", a.handleEntry)
	e.GET("/api/runs", a.handleRuns)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/healthz", a.handleHealth)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopPrune != nil {
		a.stopPrune()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	for _, c := range a.closers {
		c.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	return nil
}

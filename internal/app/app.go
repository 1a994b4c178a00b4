// Package app wires the engine from settings: stores, metadata, dataset
// adapters, services and the long-lived servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/auth"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/config/file"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/metadata/files"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/pagecache/filesystem"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/pagecache/minio"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/queue"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/storage/sqlite"
	"github.com/sspi-index/sspi-engine/internal/adapters/driving/cli"
	httpapi "github.com/sspi-index/sspi-engine/internal/adapters/driving/http"
	"github.com/sspi-index/sspi-engine/internal/adapters/driving/worker"
	"github.com/sspi-index/sspi-engine/internal/core/ports/driven"
	"github.com/sspi-index/sspi-engine/internal/core/services"
	"github.com/sspi-index/sspi-engine/internal/logger"
	"github.com/sspi-index/sspi-engine/internal/metrics"
)

// App holds every wired component.
type App struct {
	Settings *file.Settings
	Metrics  *metrics.Metrics

	Store    *sqlite.Store
	Metadata *services.MetadataRegistry
	Datasets *services.DatasetRegistry

	Dispatcher *services.Dispatcher
	Scoring    *services.ScoringService
	Runner     *services.Runner
	Query      *services.QueryService
	Jobs       *services.JobService
	Queue      *queue.Queue

	// Tokens is nil when no signing key is configured.
	Tokens *auth.TokenService
}

// LoadSettings reads .env, then config.toml in configDir, and applies the
// log settings.
func LoadSettings(configDir string) (*file.Settings, error) {
	if err := file.LoadDotEnv(""); err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, err
	}
	s, err := file.LoadSettings(store, Organizations())
	if err != nil {
		return nil, err
	}
	if err := logger.Configure(logger.Config{
		Level:      s.Log.Level,
		File:       s.Log.File,
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// New wires the engine. Metadata is loaded before New returns.
func New(ctx context.Context, s *file.Settings) (*App, error) {
	a := &App{Settings: s, Metrics: metrics.New()}

	store, err := sqlite.NewStore(s.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.Store = store

	var source driven.MetadataSource = files.NewDefaultSource()
	if s.Metadata.Dir != "" {
		source = files.NewDirSource(s.Metadata.Dir)
	}
	a.Metadata = services.NewMetadataRegistry(source, store.MetadataStore())
	if err := a.Metadata.Reload(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.Metrics.IncMetadataReloaded()

	cache, err := newPageCache(ctx, s)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.Datasets = services.NewDatasetRegistry()
	if err := RegisterDatasets(a.Datasets, s, cache, a.Metadata); err != nil {
		store.Close()
		return nil, err
	}

	locks := services.NewKeyedLock()
	raw, clean := store.RawStore(), store.ObservationStore()
	a.Dispatcher = services.NewDispatcher(a.Datasets, a.Metadata, raw, clean, countriesResolver(), locks, a.Metrics)
	a.Scoring = services.NewScoringService(a.Metadata, clean, locks, a.Metrics)
	a.Runner = services.NewRunner(a.Dispatcher, a.Scoring, a.Metadata, raw, clean, locks)
	a.Query = services.NewQueryService(a.Metadata, clean)

	a.Queue = queue.New(a.queueConfig())
	a.Jobs = services.NewJobService(a.Queue, a.Metadata)

	if s.Auth.JWTSigningKey != "" {
		tokens, err := auth.NewTokenService(s.Auth.JWTSigningKey, s.Auth.JWTIssuer, s.Auth.TokenTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Tokens = tokens
	} else {
		logger.Warn("auth.jwt_signing_key is not set; bearer tokens are disabled")
	}
	return a, nil
}

func newPageCache(ctx context.Context, s *file.Settings) (driven.PageCache, error) {
	switch s.PageCache.Backend {
	case file.PageCacheFilesystem:
		return filesystem.New(s.PageCache.Dir, s.PageCache.MaxAge)
	case file.PageCacheMinio:
		return minio.New(ctx, minio.Config{
			Endpoint:  s.Minio.Endpoint,
			AccessKey: s.Minio.AccessKey,
			SecretKey: s.Minio.SecretKey,
			Bucket:    s.Minio.Bucket,
			Region:    s.Minio.Region,
			UseSSL:    s.Minio.UseSSL,
		})
	}
	return nil, nil
}

func (a *App) queueConfig() queue.Config {
	return queue.Config{
		RedisAddr:     a.Settings.Redis.Addr,
		RedisPassword: a.Settings.Redis.Password,
		RedisDB:       a.Settings.Redis.DB,
		StatusTTL:     queue.DefaultStatusTTL,
	}
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	cfg := httpapi.Config{
		Query:       a.Query,
		Metadata:    a.Metadata,
		Runner:      a.Runner,
		Jobs:        a.Jobs,
		Metrics:     a.Metrics,
		LoginURL:    a.Settings.Auth.LoginURL,
		PublicReads: a.Settings.Auth.PublicReads,
	}
	if a.Tokens != nil {
		cfg.Tokens = a.Tokens
	}
	return httpapi.NewRouter(cfg)
}

// Serve runs the HTTP API, and the metadata watcher when enabled, until
// ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if a.Settings.Metadata.Watch && a.Settings.Metadata.Dir != "" {
		w, err := files.NewWatcher(a.Settings.Metadata.Dir, a.reloadMetadata)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}
	srv := httpapi.NewServer(a.Settings.Server.Addr, a.Handler())
	g.Go(func() error {
		logger.Info("listening on %s", a.Settings.Server.Addr)
		return httpapi.Serve(ctx, srv)
	})
	return g.Wait()
}

func (a *App) reloadMetadata(ctx context.Context) error {
	if err := a.Metadata.Reload(ctx); err != nil {
		return err
	}
	a.Metrics.IncMetadataReloaded()
	return nil
}

// Work consumes queued rebuilds until ctx is cancelled.
func (a *App) Work(ctx context.Context) error {
	handler := worker.NewHandler(a.Runner, a.Queue.Statuses())
	return worker.NewServer(a.queueConfig(), a.Settings.Worker.Concurrency, handler).Run(ctx)
}

// Close releases the queue and the store.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// Services exposes the app to the command line.
func (a *App) Services() *cli.Services {
	s := &cli.Services{
		Runner:     a.Runner,
		Dispatcher: a.Dispatcher,
		Query:      a.Query,
		Metadata:   a.Metadata,
		Jobs:       a.Jobs,
		Serve:      a.Serve,
		Work:       a.Work,
		Close:      a.Close,
	}
	if a.Tokens != nil {
		s.Tokens = a.Tokens
	}
	return s
}

// Factory builds the command line services from the config directory.
func Factory(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	s, err := LoadSettings(opts.ConfigDir)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		logger.SetVerbose(true)
	}
	a, err := New(ctx, s)
	if err != nil {
		return nil, err
	}
	return a.Services(), nil
}

// Package app assembles the service from a Config: storage backend, catalog,
// pipelines and background workers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/zynqcloud/go-assets/internal/assets"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/cleanup"
	"github.com/zynqcloud/go-assets/internal/config"
	"github.com/zynqcloud/go-assets/internal/handler"
	"github.com/zynqcloud/go-assets/internal/store"
)

// App owns the long-lived dependencies. Close releases them.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   store.Backend
	Catalog catalog.Catalog

	Ingester  *assets.Ingester
	Retriever *assets.Retriever
	Manager   *assets.Manager
}

// New opens the configured backend and catalog and wires the pipelines.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage backend: %w", err)
	}
	cat, err := OpenCatalog(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     backend,
		Catalog:   cat,
		Ingester:  assets.NewIngester(backend, cat, logger),
		Retriever: assets.NewRetriever(backend, cat, logger),
		Manager:   assets.NewManager(backend, cat, logger),
	}, nil
}

// OpenStore returns the backend selected by STORAGE_BACKEND.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		return store.NewS3(ctx, store.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		})
	case config.BackendLocal:
		return store.NewLocal(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.StorageBackend)
	}
}

// OpenCatalog returns the catalog selected by CATALOG_DRIVER. SQL catalogs
// are migrated before use.
func OpenCatalog(ctx context.Context, cfg *config.Config, logger *slog.Logger) (catalog.Catalog, error) {
	if cfg.CatalogDriver == config.DriverMemory {
		logger.Warn("CATALOG_DRIVER=memory: records are lost on restart")
		return catalog.NewMemory(), nil
	}
	return catalog.Open(ctx, cfg.CatalogDriver, cfg.CatalogDSN, logger)
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler {
	return handler.New(a.Config, handler.Services{
		Ingester:  a.Ingester,
		Retriever: a.Retriever,
		Manager:   a.Manager,
		Store:     a.Store,
		Catalog:   a.Catalog,
	}, a.Logger)
}

// StartCleanup launches the temp-file sweeper for the local backend. The S3
// backend streams uploads directly and has nothing to sweep.
func (a *App) StartCleanup(ctx context.Context) {
	local, ok := a.Store.(*store.Local)
	if !ok {
		return
	}
	cleanup.RunPeriodic(ctx, local.Fs(), filepath.Join(local.Root(), store.TmpDir),
		a.Config.TmpTTL, a.Config.CleanupInterval, a.Logger)
}

// Close releases the catalog.
func (a *App) Close() error {
	return a.Catalog.Close()
}

package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/store"
)

// Manager covers the catalog operations around the pipelines: listing,
// lookup, renaming, deletion and drift auditing.
type Manager struct {
	store   store.Backend
	catalog catalog.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager wires a Manager.
func NewManager(backend store.Backend, cat catalog.Catalog, logger *slog.Logger) *Manager {
	return &Manager{store: backend, catalog: cat, logger: logger, now: time.Now}
}

func (m *Manager) List(ctx context.Context, f catalog.Filter) ([]asset.Record, error) {
	return m.catalog.List(ctx, f)
}

func (m *Manager) Get(ctx context.Context, id string) (asset.Record, error) {
	return fetch(ctx, m.catalog, id)
}

// Rename changes the display name; nothing else about a record is mutable.
func (m *Manager) Rename(ctx context.Context, id, name string) (asset.Record, error) {
	name, ok := asset.CleanName(name)
	if !ok {
		return asset.Record{}, fmt.Errorf("%w: must be 1-%d characters", asset.ErrInvalidName, asset.MaxNameLength)
	}
	rec, err := m.catalog.Rename(ctx, id, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return asset.Record{}, &asset.AssetNotFoundError{ID: id}
		}
		return asset.Record{}, fmt.Errorf("rename %q: %w", id, err)
	}
	m.logger.Info("asset renamed", "id", id, "name", name)
	return rec, nil
}

// Delete removes the record first, which makes the asset invisible, then
// removes its bytes. A failed byte removal only leaves an orphan behind, so it
// is logged rather than returned.
func (m *Manager) Delete(ctx context.Context, id string) error {
	rec, err := fetch(ctx, m.catalog, id)
	if err != nil {
		return err
	}
	if err := m.catalog.Delete(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return &asset.AssetNotFoundError{ID: id}
		}
		return fmt.Errorf("delete %q: %w", id, err)
	}
	if err := m.store.Delete(ctx, rec.StorageLocation); err != nil {
		m.logger.Warn("delete: artifact removal failed, left orphaned",
			"id", id, "location", rec.StorageLocation, "err", err)
	}
	m.logger.Info("asset deleted", "id", id)
	return nil
}

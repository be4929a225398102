// Package assets implements the ingest and retrieval pipelines over a
// store.Backend (bytes) and a catalog.Catalog (metadata).
//
// Ordering is the whole contract: bytes are persisted before a record is
// created, so every record a reader can see points at a completed artifact.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/store"
)

// Upload is one ingest request as parsed by the transport layer.
type Upload struct {
	Name     string    // optional display name
	Filename string    // declared filename; its extension decides the format
	Content  io.Reader // payload; nil means no file was sent
	Size     int64     // declared byte length
}

// Ingester validates uploads, stores their bytes and records their metadata.
type Ingester struct {
	store   store.Backend
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewIngester wires an Ingester.
func NewIngester(backend store.Backend, cat catalog.Catalog, logger *slog.Logger) *Ingester {
	return &Ingester{store: backend, catalog: cat, logger: logger}
}

// Ingest runs validate → store → create.
//
// Validation errors are returned as produced by asset.Validate and nothing is
// written. A storage failure returns an error matching asset.ErrStorageWriteFailed
// and no record is created. A catalog failure returns an error matching
// asset.ErrMetadataWriteFailed; the stored artifact is then orphaned and
// logged with its location so operators can reclaim it (see Manager.Audit).
func (in *Ingester) Ingest(ctx context.Context, u Upload) (asset.Record, error) {
	if u.Content == nil {
		in.logger.Info("ingest rejected", "filename", u.Filename, "err", asset.ErrMissingPayload)
		return asset.Record{}, asset.ErrMissingPayload
	}
	format, err := asset.Validate(u.Filename, u.Size)
	if err != nil {
		in.logger.Info("ingest rejected", "filename", u.Filename, "bytes", u.Size, "err", err)
		return asset.Record{}, err
	}

	contentType, body := store.Sniff(u.Content)
	res, err := in.store.Put(ctx, body, u.Size)
	if err != nil {
		if !errors.Is(err, asset.ErrStorageWriteFailed) {
			err = fmt.Errorf("%w: %w", asset.ErrStorageWriteFailed, err)
		}
		in.logger.Error("ingest: storage write failed", "filename", u.Filename, "err", err)
		return asset.Record{}, err
	}
	in.logger.Info("ingest stored", "filename", u.Filename, "location", res.Location,
		"bytes", res.Size, "sha256", res.SHA256)

	name, ok := asset.CleanName(u.Name)
	if !ok {
		name = u.Filename
	}
	rec, err := in.catalog.Create(ctx, asset.Draft{
		Name:            name,
		Format:          format,
		StorageLocation: res.Location,
		SizeBytes:       res.Size,
		SHA256:          res.SHA256,
		ContentType:     contentType,
	})
	if err != nil {
		in.logger.Error("ingest orphaned artifact", "location", res.Location, "err", err)
		return asset.Record{}, fmt.Errorf("%w: %w", asset.ErrMetadataWriteFailed, err)
	}

	in.logger.Info("ingest complete", "id", rec.ID, "name", rec.Name, "format", rec.Format,
		"bytes", rec.SizeBytes)
	return rec, nil
}

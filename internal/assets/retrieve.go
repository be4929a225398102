package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/store"
)

// Download is an open artifact stream plus what a response needs to describe it.
// Body must be closed by the caller.
type Download struct {
	Body     io.ReadCloser
	Filename string // suggested attachment name
	Size     int64
	Record   asset.Record
}

// Retriever resolves an asset id to its stored bytes. Every call re-reads
// from the store.
type Retriever struct {
	store   store.Backend
	catalog catalog.Catalog
	logger  *slog.Logger
}

// NewRetriever wires a Retriever.
func NewRetriever(backend store.Backend, cat catalog.Catalog, logger *slog.Logger) *Retriever {
	return &Retriever{store: backend, catalog: cat, logger: logger}
}

// Download opens the artifact behind id.
//
// An unknown id yields *asset.AssetNotFoundError. A known id whose bytes are
// gone yields *asset.ArtifactMissingError, so callers can tell "never
// existed" from data loss.
func (rt *Retriever) Download(ctx context.Context, id string) (*Download, error) {
	rec, err := fetch(ctx, rt.catalog, id)
	if err != nil {
		return nil, err
	}

	rc, size, err := rt.store.Get(ctx, rec.StorageLocation)
	if err != nil {
		if errors.Is(err, asset.ErrArtifactNotFound) {
			rt.logger.Error("download: artifact missing for existing record",
				"id", id, "location", rec.StorageLocation)
			return nil, &asset.ArtifactMissingError{ID: id, Location: rec.StorageLocation}
		}
		return nil, fmt.Errorf("open artifact for %q: %w", id, err)
	}

	rt.logger.Info("download", "id", id, "bytes", size)
	return &Download{Body: rc, Filename: attachmentName(rec), Size: size, Record: rec}, nil
}

// attachmentName is the display name, with the format's extension appended
// when the name does not already end in it.
func attachmentName(rec asset.Record) string {
	ext := "." + string(rec.Format)
	if strings.HasSuffix(strings.ToLower(rec.Name), ext) {
		return rec.Name
	}
	return rec.Name + ext
}

// fetch maps catalog.ErrNotFound to the typed not-found error.
func fetch(ctx context.Context, cat catalog.Catalog, id string) (asset.Record, error) {
	rec, err := cat.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return asset.Record{}, &asset.AssetNotFoundError{ID: id}
		}
		return asset.Record{}, fmt.Errorf("fetch %q: %w", id, err)
	}
	return rec, nil
}

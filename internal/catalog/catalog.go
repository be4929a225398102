// Package catalog persists asset metadata records.
//
// Create must be atomic: a record is either fully visible to Fetch/List after
// it returns, or not at all. Both implementations rely on their substrate for
// that (a single INSERT for SQL, a mutex for Memory).
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zynqcloud/go-assets/internal/asset"
)

// ErrNotFound is returned by Fetch, FetchByLocation, Rename and Delete when
// no record matches.
var ErrNotFound = errors.New("catalog: record not found")

// Catalog is the metadata record store.
type Catalog interface {
	// Create stores a new record and returns it with ID and timestamps set.
	Create(ctx context.Context, d asset.Draft) (asset.Record, error)
	Fetch(ctx context.Context, id string) (asset.Record, error)
	// FetchByLocation returns the record referencing a storage location.
	FetchByLocation(ctx context.Context, location string) (asset.Record, error)
	List(ctx context.Context, f Filter) ([]asset.Record, error)
	// Rename updates the only mutable field.
	Rename(ctx context.Context, id, name string) (asset.Record, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// Filter narrows List. Results are ordered newest first.
type Filter struct {
	Format asset.Format // empty: all formats
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// limit clamps f.Limit into (0, maxLimit].
func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	if f.Limit > maxLimit {
		return maxLimit
	}
	return f.Limit
}

func (f Filter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

var errDuplicateLocation = errors.New("catalog: storage location already referenced")

// checkDraft enforces the record invariants every implementation shares.
func checkDraft(d asset.Draft) error {
	if _, ok := asset.ParseFormat(string(d.Format)); !ok || string(d.Format) != strings.ToLower(string(d.Format)) {
		return fmt.Errorf("catalog: invalid format %q", d.Format)
	}
	if d.StorageLocation == "" {
		return errors.New("catalog: empty storage location")
	}
	if d.Name == "" {
		return errors.New("catalog: empty name")
	}
	return nil
}

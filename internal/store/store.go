package store

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// Backend abstracts the artifact storage medium.
// Local and S3 implement it; the ingest and retrieval services never see which.
type Backend interface {
	// Put streams r to a freshly generated location and returns it.
	// When size >= 0 the stream must carry exactly size bytes.
	// Implementations must be atomic: either the full write succeeds and a
	// location is returned, or nothing is readable and the error matches
	// asset.ErrStorageWriteFailed.
	Put(ctx context.Context, r io.Reader, size int64) (PutResult, error)

	// Get opens location for streaming. Caller must close the returned ReadCloser.
	// A location that does not resolve yields asset.ErrArtifactNotFound.
	Get(ctx context.Context, location string) (rc io.ReadCloser, size int64, err error)

	// Delete removes location. Silently succeeds if it does not exist.
	Delete(ctx context.Context, location string) error

	// Exists reports whether location holds an artifact.
	Exists(ctx context.Context, location string) (bool, error)

	// Walk calls fn for every committed artifact. In-flight writes are not visited.
	Walk(ctx context.Context, fn func(Artifact) error) error
}

// PutResult is returned by Backend.Put.
type PutResult struct {
	Location string // opaque reference for Get/Delete
	Size     int64  // bytes persisted
	SHA256   string // hex-encoded digest of the persisted bytes
}

// Artifact describes one committed object, as seen by Walk.
type Artifact struct {
	Location string    `json:"location"`
	Size     int64     `json:"size_bytes"`
	ModTime  time.Time `json:"modified_at"`
}

// locationPrefix is the namespace every generated location lives under.
const locationPrefix = "models"

// newLocation returns a unique location of the form models/{ab}/{uuid}.
// The two-character shard keeps directory fan-out bounded on local disks.
func newLocation() string {
	id := uuid.NewString()
	return path.Join(locationPrefix, id[0:2], id)
}

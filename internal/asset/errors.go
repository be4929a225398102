package asset

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Sentinels for every failure the ingest and retrieval paths can report.
// Structured variants below match these through errors.Is.
var (
	// Client-caused.
	ErrMissingPayload    = errors.New("missing payload")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrInvalidName       = errors.New("invalid name")

	// Environment-caused.
	ErrStorageWriteFailed  = errors.New("storage write failed")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrMetadataWriteFailed = errors.New("metadata write failed")

	// Retrieval.
	ErrAssetNotFound   = errors.New("asset not found")
	ErrArtifactMissing = errors.New("artifact missing")
)

// UnsupportedFormatError carries the extension that was rejected. Actual is
// empty when the filename has no extension.
type UnsupportedFormatError struct {
	Actual string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Actual == "" {
		return "unsupported format: file has no extension, only STL and OBJ files are supported"
	}
	return fmt.Sprintf("unsupported format %q: only STL and OBJ files are supported", e.Actual)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// PayloadTooLargeError reports the declared size against the limit. When
// the body was cut off before its size was known, Actual is Limit+1 and
// Partial is set.
type PayloadTooLargeError struct {
	Actual  int64
	Limit   int64
	Partial bool
}

func (e *PayloadTooLargeError) Error() string {
	if e.Partial || e.Actual < 0 {
		return fmt.Sprintf("payload too large: exceeds the %s limit", humanize.IBytes(uint64(max(e.Limit, 0))))
	}
	return fmt.Sprintf("payload too large: %s exceeds the %s limit",
		humanize.IBytes(uint64(e.Actual)), humanize.IBytes(uint64(max(e.Limit, 0))))
}

func (e *PayloadTooLargeError) Is(target error) bool { return target == ErrPayloadTooLarge }

// AssetNotFoundError means the catalog has no record for ID.
type AssetNotFoundError struct {
	ID string
}

func (e *AssetNotFoundError) Error() string { return fmt.Sprintf("asset %q not found", e.ID) }

func (e *AssetNotFoundError) Is(target error) bool { return target == ErrAssetNotFound }

// ArtifactMissingError means a record exists but its bytes do not: the catalog
// and the store have drifted apart.
type ArtifactMissingError struct {
	ID       string
	Location string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("asset %q: stored artifact is missing", e.ID)
}

func (e *ArtifactMissingError) Is(target error) bool { return target == ErrArtifactMissing }

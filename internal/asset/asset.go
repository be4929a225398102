// Package asset holds the 3D model asset domain: the metadata record, the
// closed format enumeration, upload validation and the error taxonomy shared
// by storage, catalog and the ingest/retrieval services.
package asset

import (
	"strings"
	"time"
)

// Format is the closed set of accepted model formats. Values are lower-case.
type Format string

const (
	FormatSTL Format = "stl"
	FormatOBJ Format = "obj"
)

// Formats lists every accepted format.
var Formats = []Format{FormatSTL, FormatOBJ}

// ParseFormat maps s (any case) to a Format.
func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatSTL, FormatOBJ:
		return f, true
	default:
		return "", false
	}
}

// MediaType is the IANA media type served on download.
func (f Format) MediaType() string {
	switch f {
	case FormatSTL:
		return "model/stl"
	case FormatOBJ:
		return "model/obj"
	default:
		return "application/octet-stream"
	}
}

// Record is the catalog's view of one stored asset.
//
// StorageLocation, Format and CreatedAt never change after creation.
type Record struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Format          Format    `json:"file_format"`
	StorageLocation string    `json:"-"`
	SizeBytes       int64     `json:"size_bytes"`
	SHA256          string    `json:"sha256"`
	ContentType     string    `json:"content_type,omitempty"`
	CreatedAt       time.Time `json:"uploaded_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Draft is the set of fields supplied when creating a Record. The catalog
// assigns ID and timestamps.
type Draft struct {
	Name            string
	Format          Format
	StorageLocation string
	SizeBytes       int64
	SHA256          string
	ContentType     string
}

// MaxNameLength bounds display names.
const MaxNameLength = 255

// CleanName trims name and reports whether it is usable as a display name.
func CleanName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	return name, name != "" && len(name) <= MaxNameLength
}

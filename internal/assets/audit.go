package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/store"
)

// DefaultOrphanAge is how old an unreferenced artifact must be before Audit
// treats it as an orphan. Younger ones may belong to an ingest that has
// stored its bytes but not yet created its record.
const DefaultOrphanAge = time.Hour

// AuditOptions controls Manager.Audit.
type AuditOptions struct {
	Prune  bool          // delete orphaned artifacts
	MinAge time.Duration // zero means DefaultOrphanAge
}

// AuditReport lists catalog/store drift.
type AuditReport struct {
	Records   int              `json:"records"`
	Artifacts int              `json:"artifacts"`
	Missing   []MissingRecord  `json:"missing"`
	Orphans   []store.Artifact `json:"orphans"`
	Pruned    int              `json:"pruned"`
}

// MissingRecord is a record whose bytes are gone.
type MissingRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Audit compares every record with every stored artifact.
//
// Records with missing bytes are only reported; removing them could race
// with concurrent readers and would hide the data loss. Orphaned artifacts
// (no record, older than MinAge) are reported and, with Prune, deleted.
func (m *Manager) Audit(ctx context.Context, opts AuditOptions) (AuditReport, error) {
	minAge := opts.MinAge
	if minAge <= 0 {
		minAge = DefaultOrphanAge
	}
	report := AuditReport{Missing: []MissingRecord{}, Orphans: []store.Artifact{}}

	records := map[string]asset.Record{} // by location
	for offset := 0; ; {
		page, err := m.catalog.List(ctx, catalog.Filter{Limit: 1000, Offset: offset})
		if err != nil {
			return report, fmt.Errorf("audit: list records: %w", err)
		}
		for _, r := range page {
			records[r.StorageLocation] = r
		}
		if len(page) < 1000 {
			break
		}
		offset += len(page)
	}
	report.Records = len(records)

	seen := make(map[string]bool, len(records))
	cutoff := m.now().Add(-minAge)
	var candidates []store.Artifact
	err := m.store.Walk(ctx, func(a store.Artifact) error {
		report.Artifacts++
		if _, ok := records[a.Location]; ok {
			seen[a.Location] = true
			return nil
		}
		if a.ModTime.Before(cutoff) {
			candidates = append(candidates, a)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("audit: walk store: %w", err)
	}

	// The paged listing is not a snapshot: a concurrent Delete shifts later
	// records into pages already read. Confirm each candidate by location.
	for _, a := range candidates {
		_, err := m.catalog.FetchByLocation(ctx, a.Location)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			report.Orphans = append(report.Orphans, a)
		case err == nil:
			report.Records++
		default:
			m.logger.Warn("audit: orphan check failed", "location", a.Location, "err", err)
		}
	}

	for loc, r := range records {
		if seen[loc] {
			continue
		}
		// Re-check: a concurrent Delete removes the record before the bytes.
		if _, err := m.catalog.Fetch(ctx, r.ID); errors.Is(err, catalog.ErrNotFound) {
			report.Records--
			continue
		}
		if ok, err := m.store.Exists(ctx, loc); err == nil && ok {
			continue
		}
		report.Missing = append(report.Missing, MissingRecord{ID: r.ID, Name: r.Name, Location: loc})
		m.logger.Warn("audit: record without artifact", "id", r.ID, "location", loc)
	}

	for _, o := range report.Orphans {
		m.logger.Warn("audit: orphaned artifact", "location", o.Location, "bytes", o.Size,
			"age", m.now().Sub(o.ModTime).Round(time.Minute))
		if !opts.Prune {
			continue
		}
		if err := m.store.Delete(ctx, o.Location); err != nil {
			m.logger.Warn("audit: prune failed", "location", o.Location, "err", err)
			continue
		}
		report.Pruned++
	}

	m.logger.Info("audit complete", "records", report.Records, "artifacts", report.Artifacts,
		"missing", len(report.Missing), "orphans", len(report.Orphans), "pruned", report.Pruned)
	return report, nil
}

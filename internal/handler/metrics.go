package handler

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics holds process-lifetime atomic counters exposed at GET /metrics.
// All writes use atomic operations so there is no lock contention on hot paths.
type Metrics struct {
	UploadsTotal     atomic.Int64 // upload requests that reached the handler
	UploadsRejected  atomic.Int64 // turned away: validation, 411, or limiter at capacity
	UploadsFailed    atomic.Int64 // server-side failures (storage or metadata)
	BytesWritten     atomic.Int64 // bytes of successfully ingested models
	DownloadsTotal   atomic.Int64 // download requests
	DownloadsMissing atomic.Int64 // downloads whose record exists but bytes are gone
	DeletesTotal     atomic.Int64 // assets deleted
}

// metricsHandler returns the http.HandlerFunc that serialises the current counter
// snapshot as a flat JSON object. activeFunc is called at render time to include
// the real-time active-upload count from the limiter without a circular dependency.
func (m *Metrics) metricsHandler(activeFunc func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{ //nolint:errcheck
			"uploads_total":     m.UploadsTotal.Load(),
			"uploads_rejected":  m.UploadsRejected.Load(),
			"uploads_failed":    m.UploadsFailed.Load(),
			"bytes_written":     m.BytesWritten.Load(),
			"downloads_total":   m.DownloadsTotal.Load(),
			"downloads_missing": m.DownloadsMissing.Load(),
			"deletes_total":     m.DeletesTotal.Load(),
			"active_uploads":    int64(activeFunc()),
		})
	}
}

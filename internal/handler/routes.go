package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/assets"
	"github.com/zynqcloud/go-assets/internal/catalog"
	"github.com/zynqcloud/go-assets/internal/config"
	"github.com/zynqcloud/go-assets/internal/middleware"
	"github.com/zynqcloud/go-assets/internal/store"
)

// Services bundles what the handlers call into.
type Services struct {
	Ingester  *assets.Ingester
	Retriever *assets.Retriever
	Manager   *assets.Manager
	Store     store.Backend
	Catalog   catalog.Catalog
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	cfg     *config.Config
	svc     Services
	logger  *slog.Logger
	metrics *Metrics
}

// New registers all routes and returns the root http.Handler.
// Uses Go 1.22 method+path pattern syntax; no external router needed.
//
// Middleware stack (outer → inner):
//
//	RequestID → RequestLog → ServeMux → UploadLimiter (uploads only) → handler
func New(cfg *config.Config, svc Services, logger *slog.Logger) http.Handler {
	h := &Handler{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		metrics: &Metrics{},
	}
	limiter := middleware.NewUploadLimiter(cfg.MaxConcurrentUploads, func() {
		h.metrics.UploadsRejected.Add(1)
	})

	mux := http.NewServeMux()

	// POST /api/models
	//   multipart/form-data: file (required), name (optional)
	//   or raw body with X-File-Name, optional X-Asset-Name, Content-Length
	//
	// Collection and item routes are registered with and without the
	// trailing slash; the browser client uses the slashed forms.
	upload := limiter.Limit(http.HandlerFunc(h.Upload))
	for _, suffix := range []string{"", "/{$}"} {
		mux.Handle("POST /api/models"+suffix, upload)
		mux.HandleFunc("GET /api/models"+suffix, h.List)
		mux.HandleFunc("GET /api/models/{id}"+suffix, h.Get)
		mux.HandleFunc("PATCH /api/models/{id}"+suffix, h.Rename)
		mux.HandleFunc("PUT /api/models/{id}"+suffix, h.Rename)
		mux.HandleFunc("DELETE /api/models/{id}"+suffix, h.Delete)
	}
	mux.HandleFunc("GET /api/models/{id}/download", h.Download)

	// GET /health        liveness: fast 200 while the process is alive.
	// GET /healthz/ready readiness: catalog, storage and disk space.
	// GET /metrics       atomic process counters as flat JSON.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz/ready", h.Readiness)
	mux.Handle("GET /metrics", h.metrics.metricsHandler(limiter.Active))

	return middleware.RequestID(middleware.RequestLog(logger)(mux))
}

// Readiness returns 200 when the service can accept uploads; 503 when it cannot.
// Checks performed:
//  1. Catalog answers a ping
//  2. Storage is reachable (a cheap Exists probe)
//  3. Free disk space ≥ cfg.MinFreeBytes (local backend on Linux only)
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	type check struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Msg  string `json:"msg,omitempty"`
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var checks []check
	allOK := true
	fail := func(name, msg string) {
		checks = append(checks, check{name, false, msg})
		allOK = false
	}

	if err := h.svc.Catalog.Ping(ctx); err != nil {
		h.logger.Warn("readiness: catalog ping failed", "err", err)
		fail("catalog", "ping failed")
	} else {
		checks = append(checks, check{"catalog", true, ""})
	}

	if _, err := h.svc.Store.Exists(ctx, "models/readiness-probe"); err != nil {
		h.logger.Warn("readiness: storage probe failed", "err", err)
		fail("storage_accessible", "probe failed")
	} else {
		checks = append(checks, check{"storage_accessible", true, ""})
	}

	// (0, 0) means "unavailable"; skip the check rather than false-alarm.
	if ls, ok := h.svc.Store.(*store.Local); ok {
		avail, total := ls.DiskStats()
		if total > 0 {
			if avail < h.cfg.MinFreeBytes {
				fail("disk_space", fmt.Sprintf("%s free, need %s",
					humanize.IBytes(avail), humanize.IBytes(h.cfg.MinFreeBytes)))
			} else {
				checks = append(checks, check{"disk_space", true,
					fmt.Sprintf("%s free of %s", humanize.IBytes(avail), humanize.IBytes(total))})
			}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": allOK, "checks": checks})
}

// errorBody is the JSON shape of every non-2xx API response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errInvalidJSON marks a request body that could not be decoded.
var errInvalidJSON = errors.New("invalid JSON body")

// mapError resolves the status, code and client-facing message for err.
// Client errors echo the error text; server errors hide it.
func mapError(err error) (int, errorBody) {
	switch {
	case errors.Is(err, asset.ErrMissingPayload):
		return http.StatusBadRequest, errorBody{err.Error(), "missing_payload"}
	case errors.Is(err, asset.ErrUnsupportedFormat):
		return http.StatusBadRequest, errorBody{err.Error(), "unsupported_format"}
	case errors.Is(err, asset.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{err.Error(), "payload_too_large"}
	case errors.Is(err, asset.ErrInvalidName):
		return http.StatusBadRequest, errorBody{err.Error(), "invalid_name"}
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, errorBody{err.Error(), "invalid_request"}
	case errors.Is(err, asset.ErrAssetNotFound):
		return http.StatusNotFound, errorBody{err.Error(), "asset_not_found"}
	case errors.Is(err, asset.ErrArtifactMissing):
		return http.StatusInternalServerError, errorBody{"stored model data is missing", "artifact_missing"}
	case errors.Is(err, asset.ErrStorageWriteFailed):
		return http.StatusInternalServerError, errorBody{"storage write failed", "storage_write_failed"}
	case errors.Is(err, asset.ErrMetadataWriteFailed):
		return http.StatusInternalServerError, errorBody{"metadata write failed", "metadata_write_failed"}
	default:
		return http.StatusInternalServerError, errorBody{"internal error", "internal"}
	}
}

// fail writes the mapped error response. Server-side failures are logged
// with the request id; client errors are already covered by the access log.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"code", body.Code, "err", err, "request_id", middleware.RequestIDFrom(r.Context()))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

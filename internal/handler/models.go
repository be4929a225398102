package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/catalog"
)

// modelResponse is a record as the API presents it, with the URL its bytes
// are served from.
type modelResponse struct {
	asset.Record
	File string `json:"file"`
}

func present(rec asset.Record) modelResponse {
	return modelResponse{Record: rec, File: "/api/models/" + url.PathEscape(rec.ID) + "/download"}
}

// List returns a bare JSON array of records, newest first.
//
//	?format=stl|obj   filter by format
//	?limit=, ?offset= paging (limit defaults to 50, capped at 1000)
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f catalog.Filter
	if v := q.Get("format"); v != "" {
		format, ok := asset.ParseFormat(v)
		if !ok {
			h.fail(w, r, &asset.UnsupportedFormatError{Actual: v})
			return
		}
		f.Format = format
	}
	var err error
	if f.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit: "+err.Error())
		return
	}
	if f.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "offset: "+err.Error())
		return
	}

	recs, err := h.svc.Manager.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]modelResponse, len(recs))
	for i, rec := range recs {
		out[i] = present(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", v)
	}
	return n, nil
}

// Get returns one record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, present(rec))
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename updates the display name. Body: {"name":"…"}
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", errInvalidJSON, err))
		return
	}
	rec, err := h.svc.Manager.Rename(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, present(rec))
}

// Delete removes the record and its stored bytes.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.DeletesTotal.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/zynqcloud/go-assets/internal/asset"
	"github.com/zynqcloud/go-assets/internal/assets"
)

const (
	// multipartMemory is how much of a multipart form is held in RAM; the
	// rest of the file part spills to a temp file that is removed afterwards.
	multipartMemory = 8 << 20

	// multipartOverhead is the allowance for boundaries and form fields on
	// top of asset.MaxSize before the body is cut off.
	multipartOverhead = 1 << 20
)

// Upload ingests one model file.
//
// Two request shapes are accepted:
//
//	multipart/form-data   field "file" (required), field "name" (optional)
//	anything else         raw body; X-File-Name (required), X-Asset-Name
//	                      (optional), Content-Length (required, 411 otherwise)
//
// The raw form streams straight from the socket into the store. The
// multipart form needs the file size before validation, so the standard
// library spools the part first.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	h.metrics.UploadsTotal.Add(1)

	var (
		up  assets.Upload
		err error
	)
	if isMultipart(r) {
		var done func()
		up, done, err = h.multipartUpload(w, r)
		if done != nil {
			defer done()
		}
	} else {
		if r.ContentLength < 0 {
			h.metrics.UploadsRejected.Add(1)
			writeError(w, http.StatusLengthRequired, "length_required", "Content-Length header is required")
			return
		}
		up = assets.Upload{
			Name:     r.Header.Get("X-Asset-Name"),
			Filename: strings.TrimSpace(r.Header.Get("X-File-Name")),
			Content:  r.Body,
			Size:     r.ContentLength,
		}
	}
	if err == nil {
		var rec asset.Record
		rec, err = h.svc.Ingester.Ingest(r.Context(), up)
		if err == nil {
			h.metrics.BytesWritten.Add(rec.SizeBytes)
			writeJSON(w, http.StatusCreated, present(rec))
			return
		}
	}

	if isClientError(err) {
		h.metrics.UploadsRejected.Add(1)
	} else {
		h.metrics.UploadsFailed.Add(1)
	}
	h.fail(w, r, err)
}

// multipartUpload parses the form and returns the file part as an Upload.
// done releases the form's temp files and is non-nil whenever parsing began.
func (h *Handler) multipartUpload(w http.ResponseWriter, r *http.Request) (assets.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, asset.MaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			// The declared length covers boundaries too and is -1 when
			// chunked; all that is known is that the file passed the limit.
			return assets.Upload{}, nil, &asset.PayloadTooLargeError{Actual: asset.MaxSize + 1, Limit: asset.MaxSize, Partial: true}
		}
		return assets.Upload{}, nil, fmt.Errorf("%w: %w", asset.ErrMissingPayload, err)
	}
	done := func() { r.MultipartForm.RemoveAll() } //nolint:errcheck

	file, fh, err := r.FormFile("file")
	if err != nil {
		// http.ErrMissingFile: the form has no "file" part.
		return assets.Upload{}, done, asset.ErrMissingPayload
	}
	return assets.Upload{
		Name:     r.FormValue("name"),
		Filename: fh.Filename,
		Content:  file,
		Size:     fh.Size,
	}, func() { file.Close(); done() }, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// isClientError reports whether err was caused by the request rather than
// by the service.
func isClientError(err error) bool {
	status, _ := mapError(err)
	return status < http.StatusInternalServerError
}

// Download streams the stored model back to the caller without loading it
// into memory. Artifacts that can seek (local store) go through
// http.ServeContent, which adds Range and conditional-request support.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.metrics.DownloadsTotal.Add(1)

	dl, err := h.svc.Retriever.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, asset.ErrArtifactMissing) {
			h.metrics.DownloadsMissing.Add(1)
		}
		h.fail(w, r, err)
		return
	}
	defer dl.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", dl.Record.Format.MediaType())
	hdr.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	if dl.Record.SHA256 != "" {
		hdr.Set("ETag", strconv.Quote(dl.Record.SHA256))
	}

	if rs, ok := dl.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", dl.Record.UpdatedAt, rs)
		return
	}
	hdr.Set("Content-Length", strconv.FormatInt(dl.Size, 10))
	if _, err := io.Copy(w, dl.Body); err != nil {
		h.logger.Warn("download: stream interrupted", "id", dl.Record.ID, "err", err)
	}
}

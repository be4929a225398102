package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zynqcloud/go-assets/internal/middleware"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.RequestIDFrom(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rr.Header().Get(middleware.RequestIDHeader))
}

func TestRequestIDPropagatedOrReplaced(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.RequestIDFrom(r.Context())
	}))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "<script>", seen)
}

func TestRequestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello")) //nolint:errcheck
	})
	h := middleware.RequestID(middleware.RequestLog(logger)(inner))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/models", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http", line["msg"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/api/models", line["path"])
	assert.EqualValues(t, http.StatusCreated, line["status"])
	assert.EqualValues(t, 5, line["response_bytes"])
	assert.Equal(t, rr.Header().Get(middleware.RequestIDHeader), line["request_id"])
}

func TestUploadLimiterRejectsWhenFull(t *testing.T) {
	var rejected atomic.Int64
	l := middleware.NewUploadLimiter(2, func() { rejected.Add(1) })
	assert.Equal(t, 2, l.Cap())

	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered.Done()
		<-release
	}))

	var done sync.WaitGroup
	for range 2 {
		done.Add(1)
		go func() {
			defer done.Done()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/models", nil))
		}()
	}
	entered.Wait()
	assert.Equal(t, 2, l.Active())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/models", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), `"code":"capacity"`)
	assert.EqualValues(t, 1, rejected.Load())

	close(release)
	done.Wait()
	assert.Zero(t, l.Active())
}

func TestUploadLimiterDefault(t *testing.T) {
	assert.Equal(t, 64, middleware.NewUploadLimiter(0, nil).Cap())
}

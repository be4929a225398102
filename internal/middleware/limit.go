package middleware

import (
	"net/http"
	"strconv"
)

const (
	// defaultUploadConcurrency is the fallback slot count when maxConcurrent ≤ 0.
	defaultUploadConcurrency = 64

	// retryAfterSeconds is the value of the Retry-After header sent on 503.
	retryAfterSeconds = "5"

	capacityErrorPayload = `{"error":"server at capacity, retry in 5s","code":"capacity"}`
)

// UploadLimiter caps the number of concurrently active uploads using a
// non-blocking channel semaphore. When the semaphore is full, new requests
// receive HTTP 503 + Retry-After immediately rather than queuing.
//
// Each in-flight upload holds one 512 KB copy buffer, a sniff buffer, one
// goroutine and one open temp file (or one S3 multipart stream).
type UploadLimiter struct {
	sem      chan struct{}
	onReject func()
}

// NewUploadLimiter creates a limiter allowing at most maxConcurrent simultaneous
// uploads. onReject, if non-nil, is called for every request turned away.
func NewUploadLimiter(maxConcurrent int, onReject func()) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultUploadConcurrency
	}
	return &UploadLimiter{sem: make(chan struct{}, maxConcurrent), onReject: onReject}
}

// Limit wraps a handler so that each request must acquire a slot from the
// semaphore before proceeding. Requests that cannot acquire immediately get 503.
func (l *UploadLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			if l.onReject != nil {
				l.onReject()
			}
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.Header().Set("X-Active-Uploads", strconv.Itoa(len(l.sem)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(capacityErrorPayload)) //nolint:errcheck
		}
	})
}

// Active returns the number of upload slots currently in use.
func (l *UploadLimiter) Active() int { return len(l.sem) }

// Cap returns the maximum number of concurrent upload slots.
func (l *UploadLimiter) Cap() int { return cap(l.sem) }

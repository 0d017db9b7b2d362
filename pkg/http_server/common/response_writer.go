package common

import (
	"net/http"
	"sync"
)

// ResponseWriter records the status code and body size written through it.
// The recover and timeout middlewares may race with the handler, so access
// is guarded by a mutex.
type ResponseWriter struct {
	http.ResponseWriter
	mu            sync.Mutex
	status        int
	bytes         int
	headerWritten bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader writes the status once; later calls are ignored.
func (rw *ResponseWriter) WriteHeader(code int) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.headerWritten {
		return
	}
	rw.headerWritten = true
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write writes b, implying a 200 status when none was set.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.headerWritten {
		rw.headerWritten = true
		rw.status = http.StatusOK
	}

	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// HeaderWritten reports whether the status line was sent.
func (rw *ResponseWriter) HeaderWritten() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.headerWritten
}

// Status returns the status sent, 200 if the handler wrote nothing.
func (rw *ResponseWriter) Status() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// BytesWritten returns the body size written so far.
func (rw *ResponseWriter) BytesWritten() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.bytes
}

// Flush forwards to the wrapped writer when it supports flushing.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

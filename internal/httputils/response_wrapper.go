package httputils

import (
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter and records the status code and
// body size for logging and metrics
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode    int
	BytesWritten  int
	HeaderWritten bool
}

// NewResponseWriter creates a new response writer wrapper
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.HeaderWritten {
		return
	}
	rw.StatusCode = code
	rw.HeaderWritten = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts the bytes written
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.HeaderWritten {
		rw.WriteHeader(http.StatusOK)
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += size
	return size, err
}

// Flush forwards to the underlying writer so streamed metrics pages work
func (rw *ResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

package httputils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseWriterRecordsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusServiceUnavailable)
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("not ready"))

	assert.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, http.StatusServiceUnavailable, rw.StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 9, rw.BytesWritten)
}

func TestResponseWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, _ = rw.Write([]byte("ok"))
	rw.Flush()

	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.True(t, rw.HeaderWritten)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, rw.Unwrap())
}

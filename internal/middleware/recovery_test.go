package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaguard/internal/observability"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := observability.NewLoggerWithWriter(observability.LogConfig{Level: "error", Format: "json"}, &buf)
	require.NoError(t, err)

	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType))
	assert.JSONEq(t, ErrInternalServerError, rec.Body.String())
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "/explode")
}

func TestRecovery_NoPanic(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Recovery(observability.NopLogger())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	handler := Recovery(observability.NopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

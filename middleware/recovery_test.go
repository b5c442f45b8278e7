package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/heropets/server/metrics"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newPanicRouter(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(TraceID(), Recovery(log))
	r.PUT("/api/mascotas/:id/jugar", func(c *gin.Context) {
		c.Set(UserIDKey, int64(7))
		panic("nil pet")
	})
	r.GET("/api/mascotas/:id/eventos", func(c *gin.Context) {
		c.String(http.StatusOK, "event: connected\n\n")
		panic("stream broke")
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRecovery_ReportsTraceID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newPanicRouter(zap.New(core))
	counter := metrics.HTTPPanicsTotal.WithLabelValues("/api/mascotas/:id/jugar")
	before := promtest.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodPut, "/api/mascotas/3/jugar", nil)
	req.Header.Set(TraceIDHeader, "trace-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["error"])
	assert.Equal(t, "trace-42", body["traceId"])
	assert.Equal(t, before+1, promtest.ToFloat64(counter))

	entries := logs.FilterMessage("handler panicked").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "trace-42", fields["trace_id"])
	assert.Equal(t, "/api/mascotas/:id/jugar", fields["route"])
	assert.Equal(t, int64(7), fields["user_id"])
	assert.Equal(t, "3", fields["resource_id"])
}

func TestRecovery_AfterWriteKeepsStatus(t *testing.T) {
	r := newPanicRouter(zap.NewNop())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/mascotas/3/eventos", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "internal error")
}

func TestRecovery_NoPanicPassesThrough(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := newPanicRouter(zap.New(core))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, logs.Len())
}

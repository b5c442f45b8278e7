package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceOf(t *testing.T, headers map[string]string) string {
	t.Helper()
	r := gin.New()
	r.Use(TraceID())
	r.GET("/api/all", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})
	req := httptest.NewRequest(http.MethodGet, "/api/all", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, w.Body.String(), w.Header().Get(TraceIDHeader), "echoed in the response")
	return w.Body.String()
}

func isGenerated(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func TestTraceID_Sources(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"trace header", map[string]string{TraceIDHeader: "web-7f3a.2"}, "web-7f3a.2"},
		{"proxy request id", map[string]string{RequestIDHeader: "req_91"}, "req_91"},
		{"trace wins over request id", map[string]string{TraceIDHeader: "t1", RequestIDHeader: "r1"}, "t1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, traceOf(t, tc.headers))
		})
	}
}

func TestTraceID_Replaced(t *testing.T) {
	for name, value := range map[string]string{
		"absent":    "",
		"oversized": strings.Repeat("x", 200),
		"spaces":    "pet 1 feed",
		"markup":    "<script>",
		"newline":   "a\nb",
	} {
		t.Run(name, func(t *testing.T) {
			id := traceOf(t, map[string]string{TraceIDHeader: value})
			assert.True(t, isGenerated(id), id)
		})
	}
}

func TestTraceID_UniquePerRequest(t *testing.T) {
	assert.NotEqual(t, traceOf(t, nil), traceOf(t, nil))
}

func TestGetTraceID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetTraceID(c))
}

package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

func TestIPExtractor_IgnoresHeadersFromUntrustedPeers(t *testing.T) {
	extract := buildIPExtractor([]string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "203.0.113.9", extract(req))

	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "1.2.3.4", extract(req))

	req.Header.Set("X-Real-IP", "5.6.7.8")
	assert.Equal(t, "5.6.7.8", extract(req))
}

func TestIPExtractor_BareIPAndMappedPeers(t *testing.T) {
	extract := buildIPExtractor([]string{"192.168.1.10", "not-an-ip"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	req.Header.Set("CF-Connecting-IP", "9.9.9.9")
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 192.168.1.10")
	assert.Equal(t, "9.9.9.9", extract(req))

	req.RemoteAddr = "[::ffff:192.168.1.10]:443"
	assert.Equal(t, "9.9.9.9", extract(req))

	req.RemoteAddr = "192.168.1.11:443"
	assert.Equal(t, "192.168.1.11", extract(req))
}

func TestRateLimit_Blocks(t *testing.T) {
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, RateLimit(2, time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Another client is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "198.51.100.8:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_PreflightAllowsAdminHeader(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://nexus.example"}}))
	e.POST("/api/tracks", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/tracks", nil)
	req.Header.Set("Origin", "https://nexus.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://nexus.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Admin-Password")
}

func TestCORS_UnknownOriginGetsNoHeaders(t *testing.T) {
	e := echo.New()
	e.Use(CORS(CORSConfig{AllowedOrigins: []string{"https://nexus.example"}}))
	e.GET("/api/stats", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, requestLevel("/api/file/song.mp3", http.StatusPartialContent))
	assert.Equal(t, slog.LevelDebug, requestLevel("/healthz", http.StatusOK))
	assert.Equal(t, slog.LevelInfo, requestLevel("/api/auth/me", http.StatusOK))
	assert.Equal(t, slog.LevelWarn, requestLevel("/api/file/missing", http.StatusNotFound))
	assert.Equal(t, slog.LevelError, requestLevel("/healthz", http.StatusServiceUnavailable))
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	e := echo.New()
	h := Recovery()(func(c echo.Context) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	err := h(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusInternalServerError, apperror.SafeCode(err))
	assert.NotContains(t, apperror.SafeMessage(err), "boom")
}

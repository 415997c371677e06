package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(h gin.HandlerFunc, method, origin string, header ...string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h)
	r.Handle(method, "/bills", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(method, "/bills", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSWithConfig(t *testing.T) {
	listed := DefaultCORSConfig()
	listed.AllowOrigins = []string{"https://app.coliving.test", "https://ops.coliving.test"}

	t.Run("listed origin", func(t *testing.T) {
		w := serve(CORSWithConfig(listed), http.MethodGet, "https://ops.coliving.test")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://ops.coliving.test", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), IdempotencyKeyHeader)
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("unlisted origin gets no headers", func(t *testing.T) {
		w := serve(CORSWithConfig(listed), http.MethodGet, "https://evil.test")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("default config allows nobody", func(t *testing.T) {
		w := serve(CORSWithConfig(DefaultCORSConfig()), http.MethodGet, "https://app.coliving.test")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never sends credentials", func(t *testing.T) {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = []string{"*"}

		w := serve(CORSWithConfig(cfg), http.MethodGet, "https://anyone.test")

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Empty(t, w.Header().Get("Vary"))
	})

	t.Run("preflight is answered without reaching the handler", func(t *testing.T) {
		w := serve(CORSWithConfig(listed), http.MethodOptions, "https://app.coliving.test")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})

	t.Run("preflight from unlisted origin", func(t *testing.T) {
		w := serve(CORSWithConfig(listed), http.MethodOptions, "https://evil.test")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("max age rounds down to seconds", func(t *testing.T) {
		cfg := listed
		cfg.MaxAge = 90*time.Second + 500*time.Millisecond
		w := serve(CORSWithConfig(cfg), http.MethodGet, "https://app.coliving.test")
		assert.Equal(t, "90", w.Header().Get("Access-Control-Max-Age"))

		cfg.MaxAge = 0
		w = serve(CORSWithConfig(cfg), http.MethodGet, "https://app.coliving.test")
		assert.Empty(t, w.Header().Values("Access-Control-Max-Age"))
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		w := serve(RequestID(), http.MethodGet, "")

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("kept from the caller", func(t *testing.T) {
		w := serve(RequestID(), http.MethodGet, "", RequestIDHeader, "req-42")

		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-42", w.Body.String())
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		long := strings.Repeat("x", MaxRequestIDLength+1)
		w := serve(RequestID(), http.MethodGet, "", RequestIDHeader, long)

		assert.NotEqual(t, long, w.Header().Get(RequestIDHeader))
		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})
}

func TestSecure(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := serve(Secure(), http.MethodGet, "")

		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
		assert.Equal(t, apiContentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
		assert.Equal(t, apiPermissionsPolicy, w.Header().Get("Permissions-Policy"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	})

	t.Run("hsts", func(t *testing.T) {
		w := serve(SecureWithConfig(SecurityConfig{HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}), http.MethodGet, "")

		assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
		assert.Empty(t, w.Header().Values("Content-Security-Policy"))
		assert.Empty(t, w.Header().Values("Permissions-Policy"))
	})
}

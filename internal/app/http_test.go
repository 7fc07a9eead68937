package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-inventory-service/config"
	"github.com/stretchr/testify/assert"
)

func corsRequest(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	t.Run("wildcard without credentials", func(t *testing.T) {
		h := NewCORS(config.HTTPConfig{AllowedOrigins: []string{"*"}}).Handler(ok)
		rec := corsRequest(h, "https://evil.example.com")
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("explicit origins with credentials", func(t *testing.T) {
		h := NewCORS(config.HTTPConfig{AllowedOrigins: []string{"https://pos.example.com"}}).Handler(ok)

		rec := corsRequest(h, "https://pos.example.com")
		assert.Equal(t, "https://pos.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

		rec = corsRequest(h, "https://evil.example.com")
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

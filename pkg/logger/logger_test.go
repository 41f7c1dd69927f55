package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_AddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("listings-service", "debug", &buf)

	Info().Str("listing_id", "abc").Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "listings-service", entry["service"])
	assert.Equal(t, "abc", entry["listing_id"])
	assert.Equal(t, "hello", entry["message"])
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("listings-service", "verbose", &buf)

	Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestGinLoggerMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("listings-service", "info", &buf)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLoggerMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.EqualValues(t, 404, entry["status"])
}

func TestGinLoggerMiddleware_GeneratesRequestID(t *testing.T) {
	InitWithWriter("listings-service", "info", &bytes.Buffer{})
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLoggerMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

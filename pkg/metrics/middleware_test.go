package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinPrometheusMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinPrometheusMiddleware("metrics-test"))
	router.GET("/listings/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/listings/abc123", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("metrics-test", "GET", "/listings/:id", "200")))
}

func TestGinPrometheusMiddleware_SkipsHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinPrometheusMiddleware("metrics-health-test"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, 0.0, testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("metrics-health-test", "GET", "/health", "200")))
}

func TestStoreTimer_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(StoreErrors.WithLabelValues("timer-test", "tx"))

	NewStoreTimer("timer-test", StoreOpTx, "listings").Observe(assert.AnError)
	NewStoreTimer("timer-test", StoreOpTx, "listings").Observe(nil)

	assert.Equal(t, before+1, testutil.ToFloat64(StoreErrors.WithLabelValues("timer-test", "tx")))
}

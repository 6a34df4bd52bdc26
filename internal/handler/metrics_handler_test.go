package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gvn-booking-api/internal/service"
)

func TestReadyReportsEachCheck(t *testing.T) {
	ok := ReadinessCheck{Name: "database", Probe: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "cache", Probe: func(context.Context) error { return errors.New("dial tcp: refused") }}

	r := newTestRouter(nil, func(r *gin.Engine) {
		r.GET("/ready", NewMetricsHandler(nil, ok).Ready)
		r.GET("/ready-degraded", NewMetricsHandler(nil, ok, down).Ready)
	})

	w := doJSON(r, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok"}}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/ready-degraded", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"database":"ok","cache":"unavailable"}}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newTestRouter(nil, func(r *gin.Engine) {
		r.GET("/metrics", NewMetricsHandler(metrics).Prometheus)
		r.GET("/metrics-off", NewMetricsHandler(nil).Prometheus)
	})

	w := doJSON(r, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")

	w = doJSON(r, http.MethodGet, "/metrics-off", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

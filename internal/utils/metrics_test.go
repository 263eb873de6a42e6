package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()

	mc.IncrementRequests("SendMessage")
	mc.IncrementRequests("SendMessage")
	mc.IncrementErrors("SendMessage", ErrPermissionDenied)
	mc.AddOperationLatency("SendMessage", 3*time.Millisecond)
	mc.SubscriptionOpened()
	mc.SubscriptionOpened()
	mc.SubscriptionClosed()
	mc.ConnectionOpened()

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.requests.WithLabelValues("SendMessage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.errors.WithLabelValues("SendMessage", ErrPermissionDenied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.subscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.connections))
	assert.Equal(t, 1, testutil.CollectAndCount(mc.operationTime))
}

func TestMetricsHandler(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrementRequests("ListUsers")

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gatorchat_requests_total{operation="ListUsers"} 1`)
}

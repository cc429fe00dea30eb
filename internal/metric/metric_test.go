package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var stream *StreamMetrics
	var cache *CacheMetrics
	var sync *SyncMetrics

	assert.NotPanics(t, func() {
		stream.FrameReceived()
		stream.FrameDropped("parse")
		stream.Reconnect()
		stream.SetConnected(true)
		stream.HandlerFailed()
		cache.Read("things", "fresh")
		cache.FetchFailed("things")
		cache.SetSize("things", 3)
		sync.Applied("things", "added")
		sync.Ignored("things", "removed")
	})
}

func TestRegistryCountsAndServes(t *testing.T) {
	reg := NewRegistry()
	reg.Stream.Reconnect()
	reg.Stream.Reconnect()
	reg.Cache.Read("items", "cached")

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Stream.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Cache.reads.WithLabelValues("items", "cached")))

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "entitycache_stream_reconnect_attempts_total 2"))
}

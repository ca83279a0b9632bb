package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestClient_Records(t *testing.T) {
	c := New("test")

	c.ObserveRequest("GET", 200, 15*time.Millisecond)
	c.ObserveRequest("GET", 200, 5*time.Millisecond)
	c.ObserveRequest("PUT", 500, time.Millisecond)
	c.CacheHit()
	c.CacheMiss()
	c.CacheMiss()
	c.CacheInvalidated(3)
	c.CacheRollback()
	c.PushReconnect()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsTotal.WithLabelValues("PUT", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheMisses))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheInvalidation))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheRollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushReconnects))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "test_cache_hits_total 1"))
}

func TestClient_NilIsNoop(t *testing.T) {
	var c *Client
	assert.NotPanics(t, func() {
		c.ObserveRequest("GET", 200, time.Millisecond)
		c.CacheHit()
		c.CacheMiss()
		c.CacheInvalidated(1)
		c.CacheRollback()
		c.PushReconnect()
	})
	assert.Nil(t, c.Registry())
}

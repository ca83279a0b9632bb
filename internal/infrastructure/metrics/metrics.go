package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client collects client-side metrics on a private registry.
// A nil *Client is a valid no-op recorder.
type Client struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheInvalidation prometheus.Counter
	cacheRollbacks    prometheus.Counter
	pushReconnects    prometheus.Counter
}

// New registers the client metrics under the given namespace
func New(namespace string) *Client {
	registry := prometheus.NewRegistry()

	c := &Client{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Queries served from a fresh cache entry",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Queries that required a network fetch",
		}),
		cacheInvalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache entries marked stale by invalidation",
		}),
		cacheRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_rollbacks_total",
			Help:      "Optimistic updates rolled back after a failed mutation",
		}),
		pushReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_reconnects_total",
			Help:      "Push channel reconnect attempts",
		}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.cacheHits,
		c.cacheMisses,
		c.cacheInvalidation,
		c.cacheRollbacks,
		c.pushReconnects,
	)

	return c
}

// ObserveRequest records one API round trip. status is 0 for network failures.
func (c *Client) ObserveRequest(method string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Client) CacheHit() {
	if c != nil {
		c.cacheHits.Inc()
	}
}

func (c *Client) CacheMiss() {
	if c != nil {
		c.cacheMisses.Inc()
	}
}

func (c *Client) CacheInvalidated(n int) {
	if c != nil {
		c.cacheInvalidation.Add(float64(n))
	}
}

func (c *Client) CacheRollback() {
	if c != nil {
		c.cacheRollbacks.Inc()
	}
}

func (c *Client) PushReconnect() {
	if c != nil {
		c.pushReconnects.Inc()
	}
}

// Registry exposes the underlying registry
func (c *Client) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Client) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

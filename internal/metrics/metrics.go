package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filehub",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "filehub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// StorageUsageMB is the content usage observed by the last quota computation.
	StorageUsageMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "filehub",
		Name:      "storage_usage_megabytes",
		Help:      "Aggregate size of content objects, thumbnails excluded.",
	})

	// Uploads counts upload attempts by outcome.
	Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filehub",
		Name:      "uploads_total",
		Help:      "Upload attempts by outcome.",
	}, []string{"outcome"})

	// QuotaDenials counts uploads rejected by the quota guard.
	QuotaDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filehub",
		Name:      "quota_denials_total",
		Help:      "Uploads denied because the storage quota was exceeded.",
	})

	// ThumbnailCleanupFailures counts failed best-effort thumbnail deletes.
	ThumbnailCleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "filehub",
		Name:      "thumbnail_cleanup_failures_total",
		Help:      "Derived thumbnail deletions that failed and were swallowed.",
	})

	// ShareResolutions counts share code lookups by outcome.
	ShareResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "filehub",
		Name:      "share_resolutions_total",
		Help:      "Share code resolutions by outcome.",
	}, []string{"outcome"})

	registerOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			StorageUsageMB,
			Uploads,
			QuotaDenials,
			ThumbnailCleanupFailures,
			ShareResolutions,
		)
	})
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

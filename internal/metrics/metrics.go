package metrics

import (
	"errors"
	"net/http"

	ierr "go-firestore-admin/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Product repository operations by outcome
	ProductOperationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_operations_total",
			Help: "Total number of product repository operations",
		},
		[]string{"op", "result"},
	)

	BlobCleanupFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blob_cleanup_failures_total",
			Help: "Total number of best-effort image deletions that failed",
		},
	)

	// Current category distribution
	CategoryProductsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "category_products",
			Help: "Number of products per category in the latest snapshot",
		},
		[]string{"category"},
	)
)

// Register adds every collector to reg, prefixing names with prefix when it is not empty.
func Register(reg prometheus.Registerer, prefix string) {
	if prefix != "" {
		reg = prometheus.WrapRegistererWithPrefix(prefix+"_", reg)
	}
	reg.MustRegister(
		HttpRequestsTotal,
		HttpRequestDuration,
		ProductOperationsCounter,
		BlobCleanupFailuresCounter,
		CategoryProductsGauge,
	)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveProductOp(op string, err error) {
	ProductOperationsCounter.WithLabelValues(op, Result(err)).Inc()
}

// Result classifies an operation error into a low cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case ierr.IsValidation(err):
		return "validation"
	case errors.Is(err, ierr.NotFound):
		return "not_found"
	case ierr.IsStorage(err):
		return "storage"
	case ierr.IsTransport(err):
		return "transport"
	}
	return "error"
}

// SetCategoryDistribution replaces the gauge values with counts.
func SetCategoryDistribution(counts map[string]int) {
	CategoryProductsGauge.Reset()
	for category, n := range counts {
		CategoryProductsGauge.WithLabelValues(category).Set(float64(n))
	}
}

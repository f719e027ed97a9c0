// Package metrics provides Prometheus instrumentation for the trading
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuotesTotal counts quotes served, partitioned by mode.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfwd_quotes_total",
		Help: "Total number of quotes computed",
	}, []string{"mode"})

	// QuoteLatency is the matching-engine latency per quote.
	QuoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfwd_quote_latency_seconds",
		Help:    "Quote computation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// PartialLiquidityQuotes counts quotes the book could not fully fill.
	PartialLiquidityQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfwd_partial_liquidity_quotes_total",
		Help: "Quotes returned with a nonzero unfilled remainder",
	})

	// RefreshesTotal counts position refresh passes by outcome.
	RefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfwd_position_refreshes_total",
		Help: "Position accounting passes",
	}, []string{"outcome"})

	// OrphanedFills counts mint records excluded for missing contracts.
	OrphanedFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfwd_orphaned_fills_total",
		Help: "Mint records excluded due to missing contract references",
	})

	// StatusRegressions counts detected backward status transitions.
	StatusRegressions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfwd_status_regressions_total",
		Help: "Position status regressions detected between snapshots",
	})

	// OrderbookErrors counts failed relayer fetches.
	OrderbookErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfwd_orderbook_errors_total",
		Help: "Failed order book fetches",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hfwd_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfwd_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hfwd_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// ExposureRejections counts offers rejected by the exposure limiter.
	ExposureRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfwd_exposure_rejections_total",
		Help: "Offers rejected by the exposure limiter",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

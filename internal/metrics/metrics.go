// Package metrics provides Prometheus instrumentation for the paper trading ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesOpened counts positions opened, partitioned by side.
	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polypaper_trades_opened_total",
		Help: "Total number of paper positions opened",
	}, []string{"side"})

	// TradesClosed counts positions closed, partitioned by side and result (profit, loss, even).
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polypaper_trades_closed_total",
		Help: "Total number of paper positions closed",
	}, []string{"side", "result"})

	// TradesDeclined counts refused ledger mutations by reason.
	TradesDeclined = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polypaper_trades_declined_total",
		Help: "Ledger mutations declined by business rules",
	}, []string{"reason"})

	// ValuationPasses counts portfolio valuation passes by outcome (ok, stale, error).
	ValuationPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polypaper_valuation_passes_total",
		Help: "Portfolio valuation passes",
	}, []string{"outcome"})

	// ValuationFallbacks counts positions valued at entry price because the live price was unavailable.
	ValuationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polypaper_valuation_fallbacks_total",
		Help: "Open positions valued at entry price after a price fetch failure",
	})

	// ValuationDuration tracks the wall time of a full valuation pass.
	ValuationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polypaper_valuation_duration_seconds",
		Help:    "Portfolio valuation pass duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// GatewayRequestDuration tracks market data requests by operation and outcome.
	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polypaper_gateway_request_duration_seconds",
		Help:    "Market data provider request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	// LedgerBalance tracks the last persisted cash balance.
	LedgerBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polypaper_ledger_balance",
		Help: "Current paper cash balance",
	})

	// HTTPRequestsTotal counts API requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polypaper_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks API request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polypaper_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5},
	}, []string{"method", "path"})
)

// ObserveGateway records one market data request.
func ObserveGateway(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps trade ids and slugs out of the label set.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

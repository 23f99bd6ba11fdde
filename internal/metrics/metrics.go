package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scans_total", Help: "Watchlist scan batches executed"},
	)
	ScanCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scan_cache_hits_total", Help: "Scan batches served from the TTL cache"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Breakout signals emitted"},
		[]string{"symbol", "direction"},
	)
	ScanErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scan_errors_total", Help: "Per-symbol scan failures skipped for the cycle"},
		[]string{"symbol"},
	)
	TradesOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_opened_total", Help: "Simulated trades opened"},
		[]string{"symbol", "direction"},
	)
	TradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_closed_total", Help: "Simulated trades closed"},
		[]string{"symbol", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ScansTotal, ScanCacheHitsTotal, SignalsTotal, ScanErrorsTotal,
		TradesOpenedTotal, TradesClosedTotal,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

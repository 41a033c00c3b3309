package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Candidates produced by the scoring pipeline"},
		[]string{"pair", "strategy"},
	)
	AdmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "admitted_total", Help: "Candidates admitted as open trades"},
		[]string{"strategy"},
	)
	RejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejected_total", Help: "Candidates rejected at admission"},
		[]string{"strategy", "reason"},
	)
	OpenTrades = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_trades", Help: "Currently supervised open trades"},
	)
	ClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "closed_total", Help: "Trades closed by terminal result"},
		[]string{"strategy", "result"},
	)
	GatewayRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gateway_retries_total", Help: "Transient venue call failures that were retried"},
		[]string{"call"},
	)
	ThresholdAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "threshold_adjustments_total", Help: "Feedback loop threshold moves"},
		[]string{"strategy", "direction"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, AdmittedTotal, RejectedTotal, OpenTrades, ClosedTotal, GatewayRetries, ThresholdAdjustments)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

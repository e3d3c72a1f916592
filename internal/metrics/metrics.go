package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nft_calls_total", Help: "Contract change-method calls"},
		[]string{"method"},
	)
	ViewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nft_views_total", Help: "Contract view-method calls"},
		[]string{"method"},
	)
	CallErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nft_call_errors_total", Help: "Failed contract calls by error kind"},
		[]string{"method", "error"},
	)
	CallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "nft_call_duration_seconds", Help: "Change-method duration", Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}},
	)
	TokensLeft = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "nft_tokens_left", Help: "Remaining mintable supply"},
	)
	PendingTransfers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "nft_pending_transfers", Help: "Unresolved transfer_call records"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		CallsTotal,
		ViewsTotal,
		CallErrorsTotal,
		CallDuration,
		TokensLeft,
		PendingTransfers,
	)
}

func IncCall(method string) { CallsTotal.WithLabelValues(method).Inc() }
func IncView(method string) { ViewsTotal.WithLabelValues(method).Inc() }

func IncCallError(method, kind string) { CallErrorsTotal.WithLabelValues(method, kind).Inc() }

func ObserveCall(seconds float64) { CallDuration.Observe(seconds) }

func SetTokensLeft(n uint64)      { TokensLeft.Set(float64(n)) }
func SetPendingTransfers(n int64) { PendingTransfers.Set(float64(n)) }

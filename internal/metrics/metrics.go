// Package metrics exposes the submission counters the orchestration client
// updates while driving vault transactions:
//
//	tradevault_txs_submitted_total{chain}  – transactions broadcast
//	tradevault_txs_confirmed_total{chain}  – receipts observed successful
//	tradevault_txs_reverted_total{chain}   – receipts observed failed
//	tradevault_txs_timeout_total{chain}    – confirmation deadline expired
//
// Served at /metrics in Prometheus text exposition format when a listen
// address is configured.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	txsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradevault_txs_submitted_total",
			Help: "Transactions broadcast to a chain",
		},
		[]string{"chain"},
	)
	txsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradevault_txs_confirmed_total",
			Help: "Transactions confirmed successful",
		},
		[]string{"chain"},
	)
	txsReverted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradevault_txs_reverted_total",
			Help: "Transactions mined but reverted",
		},
		[]string{"chain"},
	)
	txsTimeout = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradevault_txs_timeout_total",
			Help: "Confirmation waits that hit the deadline (final state unknown)",
		},
		[]string{"chain"},
	)
)

func init() {
	prometheus.MustRegister(txsSubmitted, txsConfirmed, txsReverted, txsTimeout)
}

func IncSubmitted(chain string) { txsSubmitted.WithLabelValues(chain).Inc() }
func IncConfirmed(chain string) { txsConfirmed.WithLabelValues(chain).Inc() }
func IncReverted(chain string)  { txsReverted.WithLabelValues(chain).Inc() }
func IncTimeout(chain string)   { txsTimeout.WithLabelValues(chain).Inc() }

// Serve exposes /metrics on addr. Blocks; run it on its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

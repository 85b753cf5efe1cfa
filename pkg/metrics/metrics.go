// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbassist_gateway_requests_total",
			Help: "Backend gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbassist_gateway_latency_seconds",
			Help:    "Backend gateway call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"op"},
	)
	SendCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbassist_send_cycles_total",
			Help: "Completed send cycles by outcome (ok, error).",
		},
		[]string{"outcome"},
	)
	SendsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbassist_sends_rejected_total",
			Help: "Send actions ignored by the guard, by reason.",
		},
		[]string{"reason"},
	)
	FeedbackRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbassist_feedback_total",
			Help: "Feedback ratings recorded, by value.",
		},
		[]string{"value"},
	)
	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbassist_analysis_runs_total",
			Help: "Admin analysis runs by outcome (ok, error, discarded).",
		},
		[]string{"outcome"},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kbassist_active_sessions",
			Help: "Chat sessions currently held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(GatewayRequests)
	prometheus.MustRegister(GatewayLatency)
	prometheus.MustRegister(SendCycles)
	prometheus.MustRegister(SendsRejected)
	prometheus.MustRegister(FeedbackRecorded)
	prometheus.MustRegister(AnalysisRuns)
	prometheus.MustRegister(ActiveSessions)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SeatHolds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_seat_holds_total",
		Help: "Seat hold attempts by result (ok or failure reason)",
	}, []string{"result"})

	BookingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_booking_events_total",
		Help: "Booking lifecycle transitions",
	}, []string{"event"})

	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transit_booking_idempotent_replays_total",
		Help: "Booking requests answered from a stored idempotency record",
	})

	ETARequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_eta_requests_total",
		Help: "ETA computations by source and result",
	}, []string{"source", "result"})

	ProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transit_routing_provider_duration_seconds",
		Help:    "Latency of routing provider calls",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	})

	ChannelMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_channel_messages_total",
		Help: "Inbound SMS/USSD messages by channel and command",
	}, []string{"channel", "command"})

	MaintenanceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_maintenance_runs_total",
		Help: "Scheduled maintenance job runs by job and result",
	}, []string{"job", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// README: Prometheus metrics for the negotiation engine and HTTP layer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "offers_submitted_total", Help: "Price offers submitted by drivers"})
	OffersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "offers_accepted_total", Help: "Offers that won a negotiation"})
	OffersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "offers_expired_total", Help: "Offers swept past their deadline"})
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "accept_conflicts_total", Help: "Accept attempts lost to a concurrent commit"})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "rides_cancelled_total", Help: "Rides cancelled before completion"})
	RidesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "corrida", Name: "rides_failed_total", Help: "Rides that exhausted their negotiation cycles"})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corrida", Name: "events_published_total", Help: "Fan-out events published"},
		[]string{"kind"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "corrida", Name: "http_requests_total", Help: "HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corrida",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

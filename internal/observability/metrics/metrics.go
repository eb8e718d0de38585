package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MessagesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_stored_total",
			Help: "Total number of persisted chat messages.",
		},
		[]string{"chat_type"},
	)

	PushEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_events_total",
			Help: "Push events enqueued to live channels, by outcome.",
		},
		[]string{"event", "result"},
	)

	DeliveryGapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_delivery_gaps_total",
			Help: "Messages persisted while a recipient had no live channel.",
		},
		[]string{"chat_type"},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Live push channels currently registered.",
		},
	)

	PresenceTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_presence_transitions_total",
			Help: "Online/offline transitions.",
		},
		[]string{"status"},
	)

	NotificationsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_created_total",
			Help: "Persisted notifications by type.",
		},
		[]string{"type"},
	)

	AuthenticationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_authentication_attempts_total",
			Help: "Session token validations by method and result.",
		},
		[]string{"method", "result"},
	)
)

var registerOnce sync.Once

// MustRegister attaches every collector to the default registry under a
// constant service label. Subsequent calls are no-ops.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			MessagesStoredTotal,
			PushEventsTotal,
			DeliveryGapsTotal,
			ConnectionsActive,
			PresenceTransitionsTotal,
			NotificationsCreatedTotal,
			AuthenticationAttemptsTotal,
		)
	})
}

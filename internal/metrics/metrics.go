package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookline",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	webhookMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookline",
			Name:      "webhook_messages_total",
			Help:      "Inbound webhook messages by extracted type.",
		},
		[]string{"type"},
	)

	appointmentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookline",
			Name:      "appointments_created_total",
			Help:      "Appointments successfully reserved.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookline",
			Name:      "reservation_conflicts_total",
			Help:      "Reservations lost to an overlapping appointment.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, webhookMessages, appointmentsCreated, reservationConflicts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncWebhookMessage counts an inbound message by type (text, button, dropped, status).
func IncWebhookMessage(kind string) {
	webhookMessages.WithLabelValues(kind).Inc()
}

// IncAppointmentCreated counts a successful reservation.
func IncAppointmentCreated() {
	appointmentsCreated.Inc()
}

// IncReservationConflict counts a reservation race lost.
func IncReservationConflict() {
	reservationConflicts.Inc()
}

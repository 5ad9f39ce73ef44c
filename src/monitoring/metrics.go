package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Ticket groups confirmed by reconciliation, per provider",
		},
		[]string{"provider"},
	)

	ticketsConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_confirmed_total",
			Help: "Individual tickets moved PENDING to CONFIRMED, per provider",
		},
		[]string{"provider"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Provider notifications received, per provider and result",
		},
		[]string{"provider", "result"},
	)

	checkIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Scan attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func TrackConfirmation(provider string, tickets int64) {
	paymentsConfirmed.WithLabelValues(provider).Inc()
	ticketsConfirmed.WithLabelValues(provider).Add(float64(tickets))
}

func TrackWebhookDelivery(provider, result string) {
	webhookDeliveries.WithLabelValues(provider, result).Inc()
}

func TrackCheckIn(outcome string) {
	checkIns.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Program operations
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "subvault_operation_duration_seconds",
			Help: "Duration of program operations in seconds",
		},
		[]string{"operation", "result"},
	)
	PaymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subvault_payments_total",
			Help: "Payment attempts by result",
		},
		[]string{"result"},
	)
	PaymentVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subvault_payment_volume_total",
			Help: "Token units paid out to recipients",
		},
	)
	FeesCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subvault_fees_total",
			Help: "Token units paid to fee wallets",
		},
	)
	CancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subvault_cancellations_total",
			Help: "Subscriptions canceled",
		},
	)
	StakeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subvault_stake_operations_total",
			Help: "Stake and unstake operations by result",
		},
		[]string{"operation", "result"},
	)

	// Notifications
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subvault_notifications_total",
			Help: "Notification emails by kind and result",
		},
		[]string{"kind", "result"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(PaymentsTotal)
	prometheus.MustRegister(PaymentVolume)
	prometheus.MustRegister(FeesCollected)
	prometheus.MustRegister(CancellationsTotal)
	prometheus.MustRegister(StakeOperationsTotal)

	prometheus.MustRegister(NotificationsTotal)

	// Go runtime and process collectors come with the default registry.
}

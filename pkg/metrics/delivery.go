package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Outbound partner webhook attempts by result",
		},
		[]string{"event_type", "result"},
	)

	DeliveryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "outcomes_total",
			Help:      "Final outcome of each partner delivery",
		},
		[]string{"event_type", "outcome"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Time from first attempt to final outcome of a partner delivery",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"event_type", "outcome"},
	)

	DeliveriesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "in_flight",
			Help:      "Partner deliveries currently running",
		},
	)

	NormalizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "normalizations_total",
			Help:      "Provider webhook normalization results",
		},
		[]string{"source", "result"},
	)

	PartnersDeactivated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "partners",
			Name:      "deactivated_total",
			Help:      "Partners deactivated by the gateway itself",
		},
		[]string{"reason"},
	)

	PartnersRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "partners",
			Name:      "registered",
			Help:      "Partners currently present in the registry",
		},
	)
)

func init() {
	Registry.MustRegister(
		DeliveryAttempts,
		DeliveryOutcomes,
		DeliveryDuration,
		DeliveriesInFlight,
		NormalizationsTotal,
		PartnersDeactivated,
		PartnersRegistered,
	)
}

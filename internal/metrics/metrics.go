package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citaplan",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	catalogBuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citaplan",
			Name:      "catalog_builds_total",
			Help:      "Slot catalogs computed (cache misses included).",
		},
	)

	appointmentsCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citaplan",
			Name:      "appointments_committed_total",
			Help:      "Appointments created by successful commits.",
		},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "citaplan",
			Name:      "slot_conflicts_total",
			Help:      "Commit batches rejected because a slot was taken.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, catalogBuilds, appointmentsCommitted, slotConflicts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncCatalogBuilds() {
	catalogBuilds.Inc()
}

func AddAppointmentsCommitted(n int) {
	appointmentsCommitted.Add(float64(n))
}

func IncSlotConflicts() {
	slotConflicts.Inc()
}

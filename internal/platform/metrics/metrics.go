package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, so services can run without metrics wired.
type Metrics struct {
	ItemsAdded              prometheus.Counter
	Checkouts               *prometheus.CounterVec
	SettingsRefreshFailures prometheus.Counter
	SnapshotSaveFailures    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ItemsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_items_added_total",
			Help: "Total number of items added to the cart",
		}),
		Checkouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Total checkout submissions by result",
		}, []string{"result"}),
		SettingsRefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storefront_settings_refresh_failures_total",
			Help: "Total failed settings endpoint refreshes",
		}),
		SnapshotSaveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cart_snapshot_save_failures_total",
			Help: "Total failed cart snapshot writes",
		}),
	}
}

func (m *Metrics) IncrementItemsAdded(n int) {
	if m == nil {
		return
	}
	m.ItemsAdded.Add(float64(n))
}

// ObserveCheckout records one checkout completion. result is one of
// "success", "rejected", "unauthenticated", "in_flight", "network_error".
func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementSettingsRefreshFailures() {
	if m == nil {
		return
	}
	m.SettingsRefreshFailures.Inc()
}

func (m *Metrics) IncrementSnapshotSaveFailures() {
	if m == nil {
		return
	}
	m.SnapshotSaveFailures.Inc()
}

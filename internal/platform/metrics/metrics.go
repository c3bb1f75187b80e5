package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registrar.
type Metrics struct {
	RegistrationsTotal   prometheus.Counter
	RegistrationFailures *prometheus.CounterVec
	RegisterDuration     prometheus.Histogram
	ListingsConfigured   prometheus.Counter
	ListingsUnlisted     prometheus.Counter
	UpgradesTotal        prometheus.Counter
	WithdrawalsTotal     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subreg_registrations_total",
			Help: "Subdomains successfully registered",
		}),
		RegistrationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subreg_registration_failures_total",
			Help: "Registration attempts rejected, by error code",
		}, []string{"code"}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subreg_register_duration_seconds",
			Help:    "End-to-end duration of register operations",
			Buckets: prometheus.DefBuckets,
		}),
		ListingsConfigured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subreg_listings_configured_total",
			Help: "Listing configure operations accepted",
		}),
		ListingsUnlisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subreg_listings_unlisted_total",
			Help: "Listings taken off sale",
		}),
		UpgradesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subreg_upgrades_total",
			Help: "Parent labels migrated to a successor registrar",
		}),
		WithdrawalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subreg_withdrawals_total",
			Help: "Ledger withdrawals paid out",
		}),
	}
}

// RecordRegistrationFailure counts a rejected register call by error code.
func (m *Metrics) RecordRegistrationFailure(code string) {
	if m == nil {
		return
	}
	m.RegistrationFailures.WithLabelValues(code).Inc()
}

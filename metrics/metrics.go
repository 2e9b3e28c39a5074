package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the tenant core.
type Metrics struct {
	TenantResolutions *prometheus.CounterVec
	PoolsActive       prometheus.Gauge
	PoolCreations     prometheus.Counter
	PoolRecycles      prometheus.Counter
	PoolEvictions     prometheus.Counter
	RateLimited       *prometheus.CounterVec
	CrossTenantDenied prometheus.Counter
}

// New initializes and registers the collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		TenantResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Tenant resolutions by outcome.",
		}, []string{"outcome"}), // ok, demo, demo_fallback, not_found, suspended, error
		PoolsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "mandanten",
			Subsystem: "pool",
			Name:      "active_gauge",
			Help:      "Number of live per-tenant connection pools.",
		}),
		PoolCreations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "pool",
			Name:      "creations_total",
			Help:      "Total connection pools created.",
		}),
		PoolRecycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "pool",
			Name:      "recycles_total",
			Help:      "Pools rebuilt because credentials went stale.",
		}),
		PoolEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "pool",
			Name:      "evictions_total",
			Help:      "Idle stale pools evicted by the sweeper.",
		}),
		RateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-endpoint rate limiter.",
		}, []string{"endpoint"}),
		CrossTenantDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "mandanten",
			Subsystem: "auth",
			Name:      "cross_tenant_denied_total",
			Help:      "Requests rejected because token claims did not match the resolved tenant.",
		}),
	}
}

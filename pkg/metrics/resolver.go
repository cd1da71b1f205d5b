package metrics

import "github.com/prometheus/client_golang/prometheus"

// ResolverMetrics counts license lookups that fell through to a fallback.
type ResolverMetrics struct {
	fallbacks *prometheus.CounterVec
}

// NewResolverMetrics registers the resolver metrics on the provided registerer.
func NewResolverMetrics(reg prometheus.Registerer) *ResolverMetrics {
	if reg == nil {
		return &ResolverMetrics{}
	}
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_resolution_fallbacks_total",
		Help: "License lookups that degraded past the primary path, by fallback kind.",
	}, []string{"kind"})
	reg.MustRegister(fallbacks)
	return &ResolverMetrics{fallbacks: fallbacks}
}

// IncFallback increments the fallback counter for the named kind.
func (r *ResolverMetrics) IncFallback(kind string) {
	if r == nil || r.fallbacks == nil {
		return
	}
	r.fallbacks.WithLabelValues(normalizeLabel(kind)).Inc()
}

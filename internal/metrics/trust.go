package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Trust-core Prometheus metrics. Standalone package to avoid import cycles
// between the token/revocation/secrets packages and HTTP.

var (
	TokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trustcore_tokens_issued_total",
		Help: "Pares access/refresh emitidos",
	})

	TokenValidationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_token_validation_failures_total",
		Help: "Rechazos de validación por causa interna (el caller sólo ve 'invalid')",
	}, []string{"cause"})

	Revocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_revocations_total",
		Help: "Revocaciones registradas por motivo",
	}, []string{"reason"})

	RevocationStoreFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_revocation_store_failures_total",
		Help: "Fallas del backend de revocación y política aplicada",
	}, []string{"mode"})

	RevocationLookupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trustcore_revocation_lookup_latency_ms",
		Help:    "Latencia de IsRevoked en milisegundos",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})

	SecretRotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_secret_rotations_total",
		Help: "Rotaciones de secretos por resultado",
	}, []string{"secret", "result"})

	CleanupRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trustcore_revocation_cleanup_removed_total",
		Help: "Registros de revocación eliminados por el barrido de limpieza",
	})
)

// Register registers the trust-core metrics on the given registry (or default
// if nil). Re-registration is tolerated so tests can call it repeatedly.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		TokensIssued,
		TokenValidationFailures,
		Revocations,
		RevocationStoreFailures,
		RevocationLookupLatency,
		SecretRotations,
		CleanupRemoved,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

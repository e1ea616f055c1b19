package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	TokensIssuedTotal     *prometheus.CounterVec
	IssuanceFailuresTotal *prometheus.CounterVec
	DevicePollsTotal      prometheus.Counter
	TicketsCreatedTotal   prometheus.Counter
	TicketsRedeemedTotal  prometheus.Counter
	PolicyDenialsTotal    prometheus.Counter
	KeyRotationsTotal     prometheus.Counter
)

// InitCustomMetrics initializes and registers the engine's Prometheus
// metrics. It should be called once at application startup; a nil
// registerer leaves the collectors usable but unregistered.
func InitCustomMetrics(reg prometheus.Registerer) {
	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uma_tokens_issued_total",
		Help: "Total number of tokens issued, by grant type.",
	}, []string{"grant_type"})
	IssuanceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uma_issuance_failures_total",
		Help: "Total number of failed token requests, by error code.",
	}, []string{"error"})
	DevicePollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uma_device_polls_total",
		Help: "Total number of device-code token polls.",
	})
	TicketsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uma_tickets_created_total",
		Help: "Total number of permission tickets created.",
	})
	TicketsRedeemedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uma_tickets_redeemed_total",
		Help: "Total number of permission tickets redeemed for an RPT.",
	})
	PolicyDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uma_policy_denials_total",
		Help: "Total number of ticket redemptions denied by policy.",
	})
	KeyRotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uma_key_rotations_total",
		Help: "Total number of JWKS key rotations.",
	})

	if reg == nil {
		log.Warn().Msg("Prometheus registry is nil, metrics left unregistered")
		return
	}

	collectors := []prometheus.Collector{
		TokensIssuedTotal,
		IssuanceFailuresTotal,
		DevicePollsTotal,
		TicketsCreatedTotal,
		TicketsRedeemedTotal,
		PolicyDenialsTotal,
		KeyRotationsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
}

func init() {
	// Collectors must exist even when InitCustomMetrics is never called,
	// e.g. in tests.
	InitCustomMetrics(nil)
}

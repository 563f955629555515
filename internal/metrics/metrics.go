// Package metrics holds the Prometheus collectors for token issuance, validation and redemption.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label value for successful operations; rejections use the rejection reason.
const OutcomeSuccess = "success"

var (
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_tokens_issued_total",
			Help: "Total number of payment tokens issued",
		},
		[]string{"currency", "offline_capable"},
	)

	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_validations_total",
			Help: "Total number of token validations by outcome",
		},
		[]string{"outcome"},
	)

	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_redemptions_total",
			Help: "Total number of redemption attempts by channel, outcome and stage reached",
		},
		[]string{"channel", "outcome", "stage"},
	)

	RedemptionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "namqr_redemption_duration_seconds",
			Help:    "Duration of redemption attempts including settlement handoff",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	DeviceChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_device_checks_total",
			Help: "Total number of device trust gate answers by status",
		},
		[]string{"status"},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_grpc_requests_total",
			Help: "Total number of gRPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	RPCDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "namqr_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	OperationalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "namqr_operational_errors_total",
			Help: "Total number of attempts aborted by an infrastructure failure",
		},
		[]string{"operation"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TokensIssuedTotal)
		prometheus.MustRegister(ValidationsTotal)
		prometheus.MustRegister(RedemptionsTotal)
		prometheus.MustRegister(RedemptionDuration)
		prometheus.MustRegister(DeviceChecksTotal)
		prometheus.MustRegister(RPCRequestsTotal)
		prometheus.MustRegister(RPCDuration)
		prometheus.MustRegister(OperationalErrorsTotal)
	})
}

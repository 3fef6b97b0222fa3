package doser

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dosesDispensed  *prometheus.CounterVec
	doseFailures    *prometheus.CounterVec
	dispenseLatency *prometheus.HistogramVec
	mlDispensed     *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec, *prometheus.CounterVec) {
	doses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doses_dispensed_total",
			Help: "Number of pump dispense attempts",
		},
		[]string{"pump", "reason"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dose_failures_total",
			Help: "Number of failed pump dispense attempts",
		},
		[]string{"pump", "reason"},
	)
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispense_latency_seconds",
			Help:    "Latency of dispense calls against the pump actuator",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"reason"},
	)
	ml := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dosed_milliliters_total",
			Help: "Total milliliters dispensed per pump",
		},
		[]string{"pump"},
	)
	return doses, failures, lat, ml
}

func init() {
	dosesDispensed, doseFailures, dispenseLatency, mlDispensed = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dosing metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dosesDispensed, doseFailures, dispenseLatency, mlDispensed)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dosesDispensed, doseFailures, dispenseLatency, mlDispensed = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/nutetra/doser/core/metrics"
)

// PromSink records dosing events in Prometheus metrics.
type PromSink struct {
	doses    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	ph       prometheus.Gauge
	ec       prometheus.Gauge
	waterTmp prometheus.Gauge
}

// NewPromSink registers dosing metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	doses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dosing_events_total",
		Help: "Total number of dosing events",
	}, []string{"pump", "reason", "success"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dosing_dispense_seconds",
		Help:    "Time spent in one dispense call",
		Buckets: prometheus.DefBuckets,
	}, []string{"pump", "reason"})
	ph := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reservoir_ph",
		Help: "Last observed reservoir pH",
	})
	ec := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reservoir_ec",
		Help: "Last observed reservoir electrical conductivity",
	})
	waterTmp := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reservoir_water_temp_celsius",
		Help: "Last observed reservoir water temperature",
	})

	if err := reg.Register(doses); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			doses = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	for _, g := range []*prometheus.Gauge{&ph, &ec, &waterTmp} {
		if err := reg.Register(*g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				*g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				return nil, err
			}
		}
	}

	return &PromSink{doses: doses, latency: latency, ph: ph, ec: ec, waterTmp: waterTmp}, nil
}

// RecordDoseResult increments the counter for each dosing result.
func (s *PromSink) RecordDoseResult(res []coremetrics.DoseResult) error {
	for _, r := range res {
		s.doses.WithLabelValues(r.Record.Pump, string(r.Record.Reason), strconv.FormatBool(r.Success)).Inc()
		s.latency.WithLabelValues(r.Record.Pump, string(r.Record.Reason)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordReading updates the probe gauges.
func (s *PromSink) RecordReading(ev coremetrics.ReadingEvent) error {
	s.ph.Set(ev.Reading.Ph)
	s.ec.Set(ev.Reading.Ec)
	s.waterTmp.Set(ev.Reading.WaterTemp)
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the given address.
// The server runs until the provided context is canceled.
// A dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

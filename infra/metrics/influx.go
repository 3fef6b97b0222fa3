package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nutetra/doser/core/logger"
	coremetrics "github.com/nutetra/doser/core/metrics"
	infralogger "github.com/nutetra/doser/infra/logger"
)

// InfluxSink writes dosing and reading events to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDoseResult writes each dosing result as a line protocol event.
func (s *InfluxSink) RecordDoseResult(res []coremetrics.DoseResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		p := write.NewPointWithMeasurement("dosing_event").
			AddTag("pump", r.Record.Pump).
			AddTag("reason", string(r.Record.Reason)).
			AddTag("success", strconv.FormatBool(r.Success)).
			AddTag("component", "dosing_controller").
			AddField("amount_ml", round3(r.Record.AmountMl)).
			AddField("current_value", round3(r.Record.CurrentValue)).
			AddField("target_value", round3(r.Record.TargetValue)).
			SetTime(r.Record.Timestamp)
		if r.Record.Product != "" {
			p.AddTag("product", r.Record.Product)
		}
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordReading writes a snapshot of the reservoir probes.
func (s *InfluxSink) RecordReading(ev coremetrics.ReadingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("reservoir_reading").
		AddTag("component", "dosing_controller").
		AddField("ph", round3(ev.Reading.Ph)).
		AddField("ec", round3(ev.Reading.Ec)).
		AddField("water_temp", round3(ev.Reading.WaterTemp)).
		SetTime(ev.Reading.ObservedAt)
	if ev.Profile != "" {
		p.AddTag("profile", ev.Profile)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordState writes a lifecycle transition.
func (s *InfluxSink) RecordState(ev coremetrics.StateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("controller_state").
		AddTag("action", ev.Action).
		AddTag("component", "dosing_controller").
		AddField("enabled", ev.State.Enabled).
		AddField("running", ev.State.Running).
		AddField("restart_count", ev.State.RestartCount).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

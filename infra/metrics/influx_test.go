package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/core/model"
)

func TestInfluxSink_RecordDoseResult(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	res := coremetrics.DoseResult{
		Record: model.DosingRecord{
			Timestamp: now, Pump: "pH Down", AmountMl: 0.5,
			Reason: model.ReasonPhAdjustment, CurrentValue: 6.5, TargetValue: 6.0,
		},
		Success: true,
		Latency: 20 * time.Millisecond,
	}
	if err := sink.RecordDoseResult([]coremetrics.DoseResult{res}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("dosing_event").
		AddTag("pump", "pH Down").
		AddTag("reason", "pH adjustment").
		AddTag("success", "true").
		AddTag("component", "dosing_controller").
		AddField("amount_ml", 0.5).
		AddField("current_value", 6.5).
		AddField("target_value", 6.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(coremetrics.Config{
		InfluxURL: srv.URL, InfluxToken: "t", InfluxOrg: "o", InfluxBucket: "b",
	})
	if _, ok := sink.(coremetrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback when health check fails, got %T", sink)
	}
}

package metrics

import (
	"time"

	"github.com/nutetra/doser/core/model"
)

// DoseResult represents one pump dispense to be recorded.
type DoseResult struct {
	Record  model.DosingRecord
	Success bool
	Latency time.Duration
}

// MetricsSink records dosing results for observability purposes.
type MetricsSink interface {
	RecordDoseResult(results []DoseResult) error
}

// ReadingEvent is a snapshot of the reservoir probes.
type ReadingEvent struct {
	Reading model.SensorReading
	Profile string
	Time    time.Time
}

// ReadingRecorder records sensor readings.
type ReadingRecorder interface {
	RecordReading(ev ReadingEvent) error
}

// StateEvent captures a controller lifecycle transition.
type StateEvent struct {
	Action string
	State  model.ControllerState
	Time   time.Time
}

// StateRecorder records lifecycle transitions.
type StateRecorder interface {
	RecordState(ev StateEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDoseResult([]DoseResult) error { return nil }
func (NopSink) RecordReading(ReadingEvent) error    { return nil }
func (NopSink) RecordState(StateEvent) error        { return nil }

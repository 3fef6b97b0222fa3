// Package history keeps bounded in-memory logs of sensor readings and dosing
// actions, and defines the store used to export them to durable storage.
package history

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/nutetra/doser/core/model"
)

// DefaultLimit caps each log at the most recent entries.
const DefaultLimit = 1000

// Recorder holds the two append-only logs. Appends beyond the cap evict the
// oldest entry. All reads return copies.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	dosing []model.DosingRecord
	sensor []model.SensorReading
}

// NewRecorder creates a Recorder. A non-positive limit uses DefaultLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{limit: limit}
}

// AppendDose records a dosing action.
func (r *Recorder) AppendDose(rec model.DosingRecord) {
	r.mu.Lock()
	r.dosing = append(r.dosing, rec)
	if len(r.dosing) > r.limit {
		r.dosing = r.dosing[len(r.dosing)-r.limit:]
	}
	r.mu.Unlock()
}

// AppendReading records a sensor reading.
func (r *Recorder) AppendReading(reading model.SensorReading) {
	r.mu.Lock()
	r.sensor = append(r.sensor, reading)
	if len(r.sensor) > r.limit {
		r.sensor = r.sensor[len(r.sensor)-r.limit:]
	}
	r.mu.Unlock()
}

// Dosing returns up to limit most recent dosing records, oldest first.
// A non-positive limit returns the full log.
func (r *Recorder) Dosing(limit int) []model.DosingRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyTail(r.dosing, limit)
}

// Readings returns up to limit most recent sensor readings, oldest first.
func (r *Recorder) Readings(limit int) []model.SensorReading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyTail(r.sensor, limit)
}

func copyTail[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// Snapshot is the exportable view of both logs.
type Snapshot struct {
	DosingHistory []model.DosingRecord  `json:"dosing_history"`
	SensorHistory []model.SensorReading `json:"sensor_history"`
	ExportedAt    time.Time             `json:"exported_at"`
}

// Snapshot copies both full logs with an export timestamp.
func (r *Recorder) Snapshot() Snapshot {
	return Snapshot{
		DosingHistory: r.Dosing(0),
		SensorHistory: r.Readings(0),
		ExportedAt:    time.Now(),
	}
}

// ReadingSummary aggregates the recent sensor window for status reporting.
type ReadingSummary struct {
	Samples     int     `json:"samples"`
	MeanPh      float64 `json:"mean_ph"`
	StdDevPh    float64 `json:"stddev_ph"`
	MeanEc      float64 `json:"mean_ec"`
	StdDevEc    float64 `json:"stddev_ec"`
	MeanTempC   float64 `json:"mean_water_temp"`
}

// Summarize computes mean and standard deviation over the last window
// readings. A zero-sample summary is returned when the log is empty.
func (r *Recorder) Summarize(window int) ReadingSummary {
	readings := r.Readings(window)
	s := ReadingSummary{Samples: len(readings)}
	if len(readings) == 0 {
		return s
	}
	ph := make([]float64, len(readings))
	ec := make([]float64, len(readings))
	temp := make([]float64, len(readings))
	for i, rd := range readings {
		ph[i] = rd.Ph
		ec[i] = rd.Ec
		temp[i] = rd.WaterTemp
	}
	s.MeanPh = stat.Mean(ph, nil)
	s.MeanEc = stat.Mean(ec, nil)
	s.MeanTempC = stat.Mean(temp, nil)
	if len(readings) > 1 {
		s.StdDevPh = stat.StdDev(ph, nil)
		s.StdDevEc = stat.StdDev(ec, nil)
	}
	return s
}

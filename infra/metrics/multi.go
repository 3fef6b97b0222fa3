package metrics

import coremetrics "github.com/nutetra/doser/core/metrics"

// MultiSink fans out recording calls to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDoseResult forwards the results to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDoseResult(res []coremetrics.DoseResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordDoseResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordReading forwards readings to sinks that support them.
func (m *MultiSink) RecordReading(ev coremetrics.ReadingEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ReadingRecorder); ok {
			if err := rec.RecordReading(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordState forwards lifecycle transitions to sinks that support them.
func (m *MultiSink) RecordState(ev coremetrics.StateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.StateRecorder); ok {
			if err := rec.RecordState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

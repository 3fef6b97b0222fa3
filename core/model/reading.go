package model

import "time"

// SensorReading is a single poll of the reservoir probes.
type SensorReading struct {
	Ph         float64   `json:"ph"`
	Ec         float64   `json:"ec"`
	WaterTemp  float64   `json:"waterTemp"`
	ObservedAt time.Time `json:"timestamp"`
}

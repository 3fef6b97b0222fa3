package model

import "time"

// DoseReason classifies why a pump was fired.
type DoseReason string

const (
	ReasonPhAdjustment DoseReason = "pH adjustment"
	ReasonEcAdjustment DoseReason = "EC adjustment"
)

// DosingRecord captures one dispense action.
type DosingRecord struct {
	Timestamp    time.Time  `json:"timestamp"`
	Pump         string     `json:"pump"`
	AmountMl     float64    `json:"amount"`
	Reason       DoseReason `json:"reason"`
	CurrentValue float64    `json:"current_value"`
	TargetValue  float64    `json:"target_value"`
	Product      string     `json:"product,omitempty"`
}

// ControllerState is the externally visible lifecycle state.
type ControllerState struct {
	Enabled        bool      `json:"enabled"`
	Running        bool      `json:"running"`
	LastCheckTime  time.Time `json:"last_check_time"`
	LastDosingTime time.Time `json:"last_dosing_time"`
	RestartCount   int       `json:"restart_count"`
}

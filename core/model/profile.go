package model

import "strings"

// Domain fallbacks used when a profile carries no usable target.
const (
	DefaultTargetPh = 6.0
	DefaultTargetEc = 1.0
	DefaultBuffer   = 0.2
)

// NutrientPumpPrefix distinguishes nutrient pumps from the two pH pumps.
const NutrientPumpPrefix = "Pump"

// TargetSpec describes a desired value for pH or EC. Any of the fields may be
// absent; Resolve applies the fallback chain.
type TargetSpec struct {
	Target *float64 `json:"target,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Buffer *float64 `json:"buffer,omitempty"`
}

// Resolve returns the effective target: the explicit target if present, the
// midpoint of min/max if both are present, otherwise def.
func (t TargetSpec) Resolve(def float64) float64 {
	if t.Target != nil {
		return *t.Target
	}
	if t.Min != nil && t.Max != nil {
		return *t.Min + (*t.Max-*t.Min)/2
	}
	return def
}

// Tolerance returns the buffer, defaulting when absent.
func (t TargetSpec) Tolerance() float64 {
	if t.Buffer != nil {
		return *t.Buffer
	}
	return DefaultBuffer
}

// PumpAssignment binds a pump to a nutrient product and per-dose amount.
type PumpAssignment struct {
	PumpName    string  `json:"pumpName"`
	Dosage      float64 `json:"dosage"`
	ProductName string  `json:"productName,omitempty"`
}

// IsNutrientPump reports whether the assignment is eligible for EC dosing.
// The pH pumps are named "pH Up"/"pH Down" and never carry nutrients.
func (p PumpAssignment) IsNutrientPump() bool {
	return p.Dosage > 0 && strings.HasPrefix(p.PumpName, NutrientPumpPrefix)
}

// Profile is the active crop profile supplied by the host system. It is
// re-fetched every cycle and treated as read-only.
type Profile struct {
	Name            string           `json:"name"`
	TargetPh        TargetSpec       `json:"targetPh"`
	TargetEc        TargetSpec       `json:"targetEc"`
	PumpAssignments []PumpAssignment `json:"pumpAssignments"`
}

// NutrientPumps returns the assignments eligible for EC dosing, in order.
func (p Profile) NutrientPumps() []PumpAssignment {
	var pumps []PumpAssignment
	for _, a := range p.PumpAssignments {
		if a.IsNutrientPump() {
			pumps = append(pumps, a)
		}
	}
	return pumps
}

// Package decision holds the pure evaluation rules deciding whether the
// reservoir needs a pH or EC correction. It has no side effects and no
// knowledge of pumps or timing.
package decision

import (
	"math"

	"github.com/nutetra/doser/core/model"
)

// Action is the outcome of one evaluation.
type Action int

const (
	ActionNone Action = iota
	ActionDosePh
	ActionDoseEc
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionDosePh:
		return "dose_ph"
	case ActionDoseEc:
		return "dose_ec"
	default:
		return "none"
	}
}

// Decision carries the chosen action together with the resolved targets it
// was evaluated against.
type Decision struct {
	Action   Action
	TargetPh float64
	TargetEc float64
}

// NeedsPhAdjustment reports whether the pH deviates from the target by more
// than the buffer. A deviation exactly equal to the buffer is in tolerance.
func NeedsPhAdjustment(current, target, buffer float64) bool {
	return math.Abs(current-target) > buffer
}

// NeedsEcAdjustment reports whether the EC is low enough to warrant nutrient
// dosing. EC above target is never corrected: lowering EC requires a water
// change, which is outside the controller's actuation capability.
func NeedsEcAdjustment(current, target, buffer float64) bool {
	return current < target-buffer
}

// Evaluate applies the priority rule: pH is checked first and EC only when pH
// is in tolerance, since a pH correction disturbs the solution enough that EC
// should be re-measured next cycle.
func Evaluate(r model.SensorReading, profile model.Profile) Decision {
	targetPh := profile.TargetPh.Resolve(model.DefaultTargetPh)
	targetEc := profile.TargetEc.Resolve(model.DefaultTargetEc)
	d := Decision{Action: ActionNone, TargetPh: targetPh, TargetEc: targetEc}

	if NeedsPhAdjustment(r.Ph, targetPh, profile.TargetPh.Tolerance()) {
		d.Action = ActionDosePh
		return d
	}
	if NeedsEcAdjustment(r.Ec, targetEc, profile.TargetEc.Tolerance()) {
		d.Action = ActionDoseEc
	}
	return d
}

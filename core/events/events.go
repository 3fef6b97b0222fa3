package events

import (
	"time"

	"github.com/nutetra/doser/core/model"
)

// ReadingEvent is published after each successful sensor poll.
type ReadingEvent struct {
	Reading model.SensorReading
}

// DoseEvent is published for each pump dispense attempt.
type DoseEvent struct {
	Record  model.DosingRecord
	Err     error
	Latency time.Duration
}

// StateEvent is emitted on lifecycle transitions.
// Action can be "started", "stopped", or "disabled_by_errors".
type StateEvent struct {
	Action string
	State  model.ControllerState
	At     time.Time
}

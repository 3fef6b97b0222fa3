package controller

import (
	"context"

	"github.com/nutetra/doser/core/model"
)

// SensorSource provides the current reservoir probe readings. A failure is
// transient: the loop skips the cycle and retries, it never gives up.
type SensorSource interface {
	GetReadings(ctx context.Context) (model.SensorReading, error)
}

// ProfileSource provides the active crop profile. A nil profile with a nil
// error is a valid result meaning no profile is active; the loop skips the
// cycle. The profile is re-fetched every cycle so live edits take effect.
type ProfileSource interface {
	ActiveProfile(ctx context.Context) (*model.Profile, error)
}

package config

import (
	"fmt"
	"time"

	"github.com/nutetra/doser/core/controller"
)

// ControllerConfig is the wire form of the loop settings. Durations are in
// seconds, matching the host UI.
type ControllerConfig struct {
	// Enabled starts the monitoring loop at boot.
	Enabled bool `json:"enabled"`
	// CheckInterval is the seconds between evaluation cycles.
	CheckInterval float64 `json:"check_interval"`
	// DosingCooldown is the seconds to wait after any dose before dosing again.
	DosingCooldown float64 `json:"dosing_cooldown"`
	// BetweenDoseDelay is the seconds between sequential nutrient dispenses.
	BetweenDoseDelay float64 `json:"between_dose_delay"`
	// PhTolerance and EcTolerance, when positive, override the profile buffers.
	PhTolerance float64 `json:"ph_tolerance"`
	EcTolerance float64 `json:"ec_tolerance"`
}

// SetDefaults applies sane defaults.
func (c *ControllerConfig) SetDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = controller.DefaultCheckInterval.Seconds()
	}
	if c.DosingCooldown <= 0 {
		c.DosingCooldown = controller.DefaultDosingCooldown.Seconds()
	}
	if c.BetweenDoseDelay <= 0 {
		c.BetweenDoseDelay = controller.DefaultBetweenDoseDelay.Seconds()
	}
}

// Validate checks mandatory fields.
func (c ControllerConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("controller.check_interval must be positive")
	}
	if c.PhTolerance < 0 || c.EcTolerance < 0 {
		return fmt.Errorf("controller tolerances must not be negative")
	}
	return nil
}

// ToConfig converts the wire form into the controller's duration-based config.
func (c ControllerConfig) ToConfig() controller.Config {
	secs := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	return controller.Config{
		CheckInterval:    secs(c.CheckInterval),
		DosingCooldown:   secs(c.DosingCooldown),
		BetweenDoseDelay: secs(c.BetweenDoseDelay),
		PhTolerance:      c.PhTolerance,
		EcTolerance:      c.EcTolerance,
	}
}

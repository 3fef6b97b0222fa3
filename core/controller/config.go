package controller

import (
	"fmt"
	"time"
)

// Default timing, matching the shipped reservoir controller settings.
const (
	DefaultCheckInterval    = 60 * time.Second
	DefaultDosingCooldown   = 300 * time.Second
	DefaultBetweenDoseDelay = 30 * time.Second
	DefaultStopTimeout      = 5 * time.Second
	DefaultBackoffStep      = 10 * time.Second
)

// Config holds the controller timing and tolerance settings.
type Config struct {
	// CheckInterval is the period between sensor evaluation cycles.
	CheckInterval time.Duration `json:"check_interval"`
	// DosingCooldown is the minimum time after any dosing action before the
	// controller doses again, letting the solution mix and sensors settle.
	DosingCooldown time.Duration `json:"dosing_cooldown"`
	// BetweenDoseDelay spaces out sequential nutrient pump dispenses.
	BetweenDoseDelay time.Duration `json:"between_dose_delay"`
	// PhTolerance and EcTolerance, when positive, override the profile's
	// buffer values.
	PhTolerance float64 `json:"ph_tolerance"`
	EcTolerance float64 `json:"ec_tolerance"`
	// StopTimeout bounds how long Stop waits for the loop to finish.
	StopTimeout time.Duration `json:"stop_timeout"`
	// ErrorBackoffStep scales the wait after a failed cycle: step × restarts.
	ErrorBackoffStep time.Duration `json:"error_backoff_step"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.DosingCooldown <= 0 {
		c.DosingCooldown = DefaultDosingCooldown
	}
	if c.BetweenDoseDelay <= 0 {
		c.BetweenDoseDelay = DefaultBetweenDoseDelay
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ErrorBackoffStep <= 0 {
		c.ErrorBackoffStep = DefaultBackoffStep
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.DosingCooldown < 0 {
		return fmt.Errorf("dosing_cooldown must not be negative")
	}
	if c.BetweenDoseDelay < 0 {
		return fmt.Errorf("between_dose_delay must not be negative")
	}
	if c.PhTolerance < 0 || c.EcTolerance < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	return nil
}

// ConfigUpdate is a partial configuration change. Nil fields are left
// untouched; unknown keys never reach this struct.
type ConfigUpdate struct {
	CheckInterval    *time.Duration `json:"check_interval,omitempty"`
	DosingCooldown   *time.Duration `json:"dosing_cooldown,omitempty"`
	BetweenDoseDelay *time.Duration `json:"between_dose_delay,omitempty"`
	PhTolerance      *float64       `json:"ph_tolerance,omitempty"`
	EcTolerance      *float64       `json:"ec_tolerance,omitempty"`
	Enabled          *bool          `json:"enabled,omitempty"`
}

// apply merges the update into cfg and reports whether loop timing changed.
func (u ConfigUpdate) apply(cfg *Config) bool {
	timingChanged := false
	if u.CheckInterval != nil && *u.CheckInterval != cfg.CheckInterval {
		cfg.CheckInterval = *u.CheckInterval
		timingChanged = true
	}
	if u.DosingCooldown != nil && *u.DosingCooldown != cfg.DosingCooldown {
		cfg.DosingCooldown = *u.DosingCooldown
		timingChanged = true
	}
	if u.BetweenDoseDelay != nil {
		cfg.BetweenDoseDelay = *u.BetweenDoseDelay
	}
	if u.PhTolerance != nil {
		cfg.PhTolerance = *u.PhTolerance
	}
	if u.EcTolerance != nil {
		cfg.EcTolerance = *u.EcTolerance
	}
	return timingChanged
}

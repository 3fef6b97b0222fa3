// Package controller owns the dosing control loop: lifecycle, scheduling,
// cooldown timing and error backoff. It consumes the sensor, profile and
// actuator ports and exposes status, history and configuration surfaces to
// the host.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nutetra/doser/core/doser"
	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/history"
	"github.com/nutetra/doser/core/logger"
	"github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/internal/eventbus"
)

// readyTimeout bounds how long Start waits for the loop to begin executing.
const readyTimeout = 2 * time.Second

// Controller runs at most one monitoring loop and owns its handle.
type Controller struct {
	sensors  SensorSource
	profiles ProfileSource
	exec     *doser.Executor
	recorder *history.Recorder
	store    history.Store
	sink     metrics.MetricsSink
	bus      eventbus.EventBus
	log      logger.Logger

	cfgMu sync.RWMutex
	cfg   Config

	// enabled is the user intent, running whether the loop task is alive.
	// Both are flipped by Stop from outside the loop goroutine.
	enabled atomic.Bool
	running atomic.Bool

	stateMu      sync.Mutex
	lastCheck    time.Time
	lastDosing   time.Time
	restartCount int

	mu     sync.Mutex // guards the loop handle below
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Controller. store, sink and bus may be nil; a nil log panics
// early rather than late, pass logger.NopLogger for silence.
func New(cfg Config, sensors SensorSource, profiles ProfileSource, actuator doser.Actuator, store history.Store, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Controller, error) {
	if sensors == nil || profiles == nil || actuator == nil {
		return nil, fmt.Errorf("controller: nil port provided to New")
	}
	if log == nil {
		return nil, fmt.Errorf("controller: nil logger provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	recorder := history.NewRecorder(history.DefaultLimit)
	c := &Controller{
		sensors:  sensors,
		profiles: profiles,
		exec:     doser.NewExecutor(actuator, recorder, bus, log),
		recorder: recorder,
		store:    store,
		sink:     sink,
		bus:      bus,
		log:      log,
		cfg:      cfg,
	}
	return c, nil
}

// Start spawns the monitoring loop. It is a no-op with a warning when the
// loop is already running, and returns once the loop has begun executing so
// callers can trust Status immediately after.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		c.log.Warnf("auto dosing is already running")
		return
	}
	c.startLocked()
}

func (c *Controller) startLocked() {
	// A handle left over from a raced or timed-out stop is cancelled and
	// awaited before a new loop is created, so no loop instance is orphaned.
	if c.cancel != nil {
		c.log.Warnf("found existing loop handle, cancelling it first")
		c.cancel()
		waitDone(c.done, 3*time.Second)
		c.cancel, c.done = nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	c.enabled.Store(true)
	c.running.Store(true)

	go c.run(ctx, ready, done)

	select {
	case <-ready:
	case <-time.After(readyTimeout):
		c.log.Warnf("timed out waiting for loop readiness")
	}
	c.log.Infof("auto dosing started")
	c.publishState("started")
}

// Stop flips the flags first so the loop observes them even before the
// cancellation lands, then waits for the loop with a bounded timeout. Safe to
// call when nothing is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.enabled.Store(false)
	c.running.Store(false)

	if c.cancel == nil {
		c.log.Warnf("no loop to stop - already stopped")
		return
	}
	c.cancel()
	stopTimeout := c.config().StopTimeout
	if !waitDone(c.done, stopTimeout) {
		c.log.Warnf("timeout waiting for loop to stop - clearing handle anyway")
	}
	c.cancel, c.done = nil, nil
	c.log.Infof("auto dosing stopped")
	c.publishState("stopped")
}

func waitDone(done chan struct{}, timeout time.Duration) bool {
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Status is the externally visible controller state plus derived cooldown
// information and a summary of the recent sensor window.
type Status struct {
	model.ControllerState
	InCooldown        bool                   `json:"in_cooldown"`
	CooldownRemaining float64                `json:"cooldown_remaining"`
	Config            ConfigEcho             `json:"config"`
	Readings          history.ReadingSummary `json:"readings"`
}

// ConfigEcho mirrors the active config in seconds, the unit the host UI uses.
type ConfigEcho struct {
	CheckInterval    float64 `json:"check_interval"`
	DosingCooldown   float64 `json:"dosing_cooldown"`
	BetweenDoseDelay float64 `json:"between_dose_delay"`
	PhTolerance      float64 `json:"ph_tolerance"`
	EcTolerance      float64 `json:"ec_tolerance"`
}

// GetStatus returns the current status snapshot.
func (c *Controller) GetStatus() Status {
	cfg := c.config()
	c.stateMu.Lock()
	lastCheck, lastDosing, restarts := c.lastCheck, c.lastDosing, c.restartCount
	c.stateMu.Unlock()

	var inCooldown bool
	var remaining float64
	if !lastDosing.IsZero() {
		elapsed := time.Since(lastDosing)
		if elapsed < cfg.DosingCooldown {
			inCooldown = true
			remaining = (cfg.DosingCooldown - elapsed).Seconds()
		}
	}
	return Status{
		ControllerState: model.ControllerState{
			Enabled:        c.enabled.Load(),
			Running:        c.running.Load(),
			LastCheckTime:  lastCheck,
			LastDosingTime: lastDosing,
			RestartCount:   restarts,
		},
		InCooldown:        inCooldown,
		CooldownRemaining: remaining,
		Config: ConfigEcho{
			CheckInterval:    cfg.CheckInterval.Seconds(),
			DosingCooldown:   cfg.DosingCooldown.Seconds(),
			BetweenDoseDelay: cfg.BetweenDoseDelay.Seconds(),
			PhTolerance:      cfg.PhTolerance,
			EcTolerance:      cfg.EcTolerance,
		},
		Readings: c.recorder.Summarize(50),
	}
}

// History bundles the two recent history views.
type History struct {
	DosingHistory []model.DosingRecord  `json:"dosing_history"`
	SensorHistory []model.SensorReading `json:"sensor_history"`
}

// GetHistory returns up to limit most recent entries of both logs.
func (c *Controller) GetHistory(limit int) History {
	return History{
		DosingHistory: c.recorder.Dosing(limit),
		SensorHistory: c.recorder.Readings(limit),
	}
}

// UpdateConfig merges the partial update. Changing the check interval or the
// dosing cooldown while running restarts the loop so the new timing takes
// effect on the next cycle instead of after the old interval drains.
func (c *Controller) UpdateConfig(u ConfigUpdate) error {
	c.cfgMu.Lock()
	cfg := c.cfg
	timingChanged := u.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		c.cfgMu.Unlock()
		return fmt.Errorf("config update: %w", err)
	}
	c.cfg = cfg
	c.cfgMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	wasRunning := c.running.Load()
	if timingChanged && wasRunning {
		c.log.Infof("loop timing changed, restarting monitoring loop")
		c.stopLocked()
		c.startLocked()
	}
	if u.Enabled != nil {
		switch {
		case *u.Enabled && !c.running.Load():
			c.startLocked()
		case !*u.Enabled && c.running.Load():
			c.stopLocked()
		}
	}
	return nil
}

// ExportHistory persists a snapshot of both logs through the configured store.
func (c *Controller) ExportHistory(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("no history store configured")
	}
	snap := c.recorder.Snapshot()
	if err := c.store.Append(ctx, snap); err != nil {
		return fmt.Errorf("export history: %w", err)
	}
	c.log.Infof("exported %d dosing and %d sensor entries", len(snap.DosingHistory), len(snap.SensorHistory))
	return nil
}

// Recorder exposes the in-memory history for read-only consumers.
func (c *Controller) Recorder() *history.Recorder { return c.recorder }

func (c *Controller) config() Config {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.cfg
}

func (c *Controller) setRestartCount(n int) {
	c.stateMu.Lock()
	c.restartCount = n
	c.stateMu.Unlock()
}

func (c *Controller) publishState(action string) {
	state := model.ControllerState{
		Enabled: c.enabled.Load(),
		Running: c.running.Load(),
	}
	now := time.Now()
	if c.bus != nil {
		c.bus.Publish(events.StateEvent{Action: action, State: state, At: now})
	}
	if sr, ok := c.sink.(metrics.StateRecorder); ok {
		if err := sr.RecordState(metrics.StateEvent{Action: action, State: state, Time: now}); err != nil {
			c.log.Errorf("state metrics error: %v", err)
		}
	}
}

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/nutetra/doser/core/decision"
	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/core/monitoring"
)

// Loop timing constants. The idle poll keeps the interval gate responsive,
// the cooldown poll detects cooldown expiry promptly, the fetch retry wait
// spaces out attempts against an unreachable sensor backend.
const (
	maxRestarts      = 5
	idlePollInterval = time.Second
	cooldownPoll     = 5 * time.Second
	fetchRetryWait   = 30 * time.Second
)

// run is the monitoring loop goroutine. It exits on cancellation or after
// exceeding the restart ceiling; both paths close done.
func (c *Controller) run(ctx context.Context, ready chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	c.log.Infof("auto dosing monitoring loop started")
	close(ready)

	restarts := 0
	for {
		select {
		case <-ctx.Done():
			c.log.Infof("monitoring loop cancelled by external request")
			return
		default:
		}
		// Stop flips these before cancelling; observe them early.
		if !c.enabled.Load() || !c.running.Load() {
			c.log.Infof("auto dosing has been disabled - exiting monitoring loop")
			return
		}

		wait, completed, err := c.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			restarts++
			c.setRestartCount(restarts)
			c.log.Errorf("error in monitoring loop: %v (restart %d/%d)", err, restarts, maxRestarts)
			monitoring.CaptureException(err, map[string]string{"component": "monitoring_loop"})
			if restarts >= maxRestarts {
				c.log.Errorf("too many errors (%d), disabling auto dosing", restarts)
				c.enabled.Store(false)
				c.running.Store(false)
				c.publishState("disabled_by_errors")
				return
			}
			backoff := time.Duration(restarts) * c.config().ErrorBackoffStep
			if !c.sleep(ctx, backoff) {
				return
			}
			continue
		}
		// Idle-gate and fetch-retry passes are not cycles; only a pass
		// that reached evaluation clears the error streak.
		if completed && restarts != 0 {
			restarts = 0
			c.setRestartCount(0)
		}
		if !c.sleep(ctx, wait) {
			return
		}
	}
}

// cycle performs one iteration and returns how long to wait before the next.
// completed reports whether the pass ran through evaluation; interval-gate,
// fetch-retry, missing-profile and cooldown passes return false. Transient
// fetch problems are handled here and never surface as errors; an error
// return means an unclassified failure counted against the restart ceiling.
func (c *Controller) cycle(ctx context.Context) (wait time.Duration, completed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	cfg := c.config()
	now := time.Now()

	c.stateMu.Lock()
	lastCheck, lastDosing := c.lastCheck, c.lastDosing
	c.stateMu.Unlock()

	// Interval gate: idle briefly and re-check, this does not count as a cycle.
	if since := now.Sub(lastCheck); since < cfg.CheckInterval {
		return minDuration(idlePollInterval, cfg.CheckInterval-since), false, nil
	}

	reading, ferr := c.sensors.GetReadings(ctx)
	if ferr != nil {
		// No data this cycle; lastCheck stays put so the retry is not gated.
		c.log.Errorf("error getting sensor readings: %v", ferr)
		return minDuration(fetchRetryWait, cfg.CheckInterval), false, nil
	}
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = now
	}
	c.recorder.AppendReading(reading)
	c.stateMu.Lock()
	c.lastCheck = now
	c.stateMu.Unlock()

	profile, perr := c.profiles.ActiveProfile(ctx)
	if perr != nil {
		c.log.Errorf("error getting active profile: %v", perr)
		return cfg.CheckInterval, false, nil
	}
	if profile == nil {
		c.log.Warnf("no active profile found, skipping auto-dosing check but continuing to monitor")
		return cfg.CheckInterval, false, nil
	}
	c.publishReading(reading, profile.Name)

	// Cooldown: skip evaluation but poll more often to catch the expiry.
	if !lastDosing.IsZero() {
		if elapsed := now.Sub(lastDosing); elapsed < cfg.DosingCooldown {
			remaining := cfg.DosingCooldown - elapsed
			c.log.Infof("in cooldown period, %s remaining", remaining.Round(time.Second))
			return minDuration(cooldownPoll, remaining), false, nil
		}
	}

	d := c.evaluate(reading, *profile, cfg)
	switch d.Action {
	case decision.ActionDosePh:
		c.log.Infof("pH adjustment needed: current=%.2f, target=%.2f", reading.Ph, d.TargetPh)
		c.exec.AdjustPh(ctx, reading.Ph, d.TargetPh)
		c.markDosed()
	case decision.ActionDoseEc:
		if len(profile.PumpAssignments) == 0 {
			c.log.Warnf("EC adjustment needed but profile has no pump assignments")
			break
		}
		c.log.Infof("EC adjustment needed: current=%.2f, target=%.2f", reading.Ec, d.TargetEc)
		c.exec.AdjustEc(ctx, reading.Ec, d.TargetEc, profile.PumpAssignments, cfg.BetweenDoseDelay)
		c.markDosed()
	default:
		c.log.Infof("no dosing needed: pH=%.2f (target %.2f), EC=%.2f (target %.2f)", reading.Ph, d.TargetPh, reading.Ec, d.TargetEc)
	}
	return cfg.CheckInterval, true, nil
}

// evaluate applies the config tolerance overrides on top of the profile
// buffers before consulting the decision engine.
func (c *Controller) evaluate(r model.SensorReading, profile model.Profile, cfg Config) decision.Decision {
	if cfg.PhTolerance > 0 {
		tol := cfg.PhTolerance
		profile.TargetPh.Buffer = &tol
	}
	if cfg.EcTolerance > 0 {
		tol := cfg.EcTolerance
		profile.TargetEc.Buffer = &tol
	}
	return decision.Evaluate(r, profile)
}

// markDosed advances lastDosingTime after a dose attempt, successful or not,
// so the cooldown starts either way.
func (c *Controller) markDosed() {
	c.stateMu.Lock()
	c.lastDosing = time.Now()
	c.stateMu.Unlock()
}

func (c *Controller) publishReading(r model.SensorReading, profileName string) {
	if c.bus != nil {
		c.bus.Publish(events.ReadingEvent{Reading: r})
	}
	if rr, ok := c.sink.(metrics.ReadingRecorder); ok {
		if err := rr.RecordReading(metrics.ReadingEvent{Reading: r, Profile: profileName, Time: r.ObservedAt}); err != nil {
			c.log.Errorf("reading metrics error: %v", err)
		}
	}
}

// sleep waits for d or until ctx is cancelled; it reports whether the loop
// should keep running.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

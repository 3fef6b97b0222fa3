// Package doser executes dosing decisions against the pump actuator. It owns
// the per-pump sequencing and the partial-failure semantics; timing policy
// (cooldown, scheduling) belongs to the controller.
package doser

import (
	"context"
	"time"

	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/logger"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/internal/eventbus"
)

// Dosing constants. A deliberately conservative pH dose keeps single
// corrections small; the solution is re-measured next cycle.
const (
	PhDoseMl         = 0.5
	FlowRateMlPerSec = 1.0
)

// Recorder receives one record per dispense.
type Recorder interface {
	AppendDose(model.DosingRecord)
}

// Executor performs dosing actions sequentially against the actuator.
type Executor struct {
	actuator Actuator
	recorder Recorder
	bus      eventbus.EventBus
	log      logger.Logger
}

// NewExecutor creates an Executor. bus may be nil.
func NewExecutor(actuator Actuator, recorder Recorder, bus eventbus.EventBus, log logger.Logger) *Executor {
	return &Executor{actuator: actuator, recorder: recorder, bus: bus, log: log}
}

// AdjustPh dispenses a single fixed dose of pH Down or pH Up depending on the
// direction of the deviation. A dispense failure is logged and swallowed; the
// caller still starts the cooldown so a faulty pump is not hammered.
func (e *Executor) AdjustPh(ctx context.Context, currentPh, targetPh float64) {
	pump := "pH Up"
	if currentPh > targetPh {
		pump = "pH Down"
	}
	e.log.Infof("dosing %.1fml of %s to move pH from %.2f towards %.2f", PhDoseMl, pump, currentPh, targetPh)
	e.dispense(ctx, model.DosingRecord{
		Pump:         pump,
		AmountMl:     PhDoseMl,
		Reason:       model.ReasonPhAdjustment,
		CurrentValue: currentPh,
		TargetValue:  targetPh,
	})
}

// AdjustEc doses each eligible nutrient pump in sequence at its assigned
// dosage, waiting betweenDose after each dispense so flows do not overlap in
// the reservoir. One failing pump does not block the remaining pumps. No new
// dispense begins once ctx is cancelled.
func (e *Executor) AdjustEc(ctx context.Context, currentEc, targetEc float64, assignments []model.PumpAssignment, betweenDose time.Duration) {
	var pumps []model.PumpAssignment
	for _, a := range assignments {
		if a.IsNutrientPump() {
			pumps = append(pumps, a)
		}
	}
	if len(pumps) == 0 {
		e.log.Warnf("no nutrient pumps with dosage assignments found")
		return
	}
	e.log.Infof("starting nutrient dosing cycle to raise EC from %.2f towards %.2f (%d pumps)", currentEc, targetEc, len(pumps))

	for _, p := range pumps {
		if ctx.Err() != nil {
			e.log.Infof("dosing sequence interrupted by cancellation")
			return
		}
		ok := e.dispense(ctx, model.DosingRecord{
			Pump:         p.PumpName,
			AmountMl:     p.Dosage,
			Reason:       model.ReasonEcAdjustment,
			CurrentValue: currentEc,
			TargetValue:  targetEc,
			Product:      p.ProductName,
		})
		if !ok {
			continue
		}
		if !sleepCtx(ctx, betweenDose) {
			return
		}
	}
}

// dispense performs one actuation call, records it on success and reports the
// outcome. It returns false when the dispense failed.
func (e *Executor) dispense(ctx context.Context, rec model.DosingRecord) bool {
	start := time.Now()
	err := e.actuator.Dispense(ctx, rec.Pump, rec.AmountMl, FlowRateMlPerSec)
	elapsed := time.Since(start)
	dispenseLatency.WithLabelValues(string(rec.Reason)).Observe(elapsed.Seconds())
	rec.Timestamp = time.Now()

	if e.bus != nil {
		e.bus.Publish(events.DoseEvent{Record: rec, Err: err, Latency: elapsed})
	}
	if err != nil {
		doseFailures.WithLabelValues(rec.Pump, string(rec.Reason)).Inc()
		e.log.Errorf("error dispensing from %s: %v", rec.Pump, err)
		return false
	}
	dosesDispensed.WithLabelValues(rec.Pump, string(rec.Reason)).Inc()
	mlDispensed.WithLabelValues(rec.Pump).Add(rec.AmountMl)
	e.recorder.AppendDose(rec)
	e.log.Infof("dosed %.2fml from %s for %s (current %.2f, target %.2f)", rec.AmountMl, rec.Pump, rec.Reason, rec.CurrentValue, rec.TargetValue)
	return true
}

// sleepCtx waits for d or until ctx is cancelled. It reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
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

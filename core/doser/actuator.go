package doser

import "context"

// Actuator abstracts the pump hardware. Implementations must not block
// indefinitely; the executor treats a failed dispense as a handled error.
type Actuator interface {
	// Dispense runs the named pump for amountMl at flowRate ml/s.
	Dispense(ctx context.Context, pumpName string, amountMl, flowRate float64) error
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, pumpName string, amountMl, flowRate float64) error

func (f ActuatorFunc) Dispense(ctx context.Context, pumpName string, amountMl, flowRate float64) error {
	return f(ctx, pumpName, amountMl, flowRate)
}

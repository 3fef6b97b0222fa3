package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/logger"
	"github.com/nutetra/doser/core/telemetry"
	"github.com/nutetra/doser/internal/eventbus"
)

// Bridge forwards bus events to the telemetry publisher. One message per
// event; serialization errors are logged and the event dropped.
type Bridge struct {
	pub    telemetry.Publisher
	bus    eventbus.EventBus
	prefix string
	log    logger.Logger
}

// NewBridge creates a Bridge publishing under prefix.
func NewBridge(pub telemetry.Publisher, bus eventbus.EventBus, prefix string, log logger.Logger) *Bridge {
	if prefix == "" {
		prefix = "nutetra/doser"
	}
	return &Bridge{pub: pub, bus: bus, prefix: prefix, log: log}
}

type readingMessage struct {
	Ph        float64   `json:"ph"`
	Ec        float64   `json:"ec"`
	WaterTemp float64   `json:"waterTemp"`
	Timestamp time.Time `json:"timestamp"`
}

type doseMessage struct {
	Pump      string    `json:"pump"`
	AmountMl  float64   `json:"amount"`
	Reason    string    `json:"reason"`
	Product   string    `json:"product,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type stateMessage struct {
	Action    string    `json:"action"`
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	Timestamp time.Time `json:"timestamp"`
}

// Run consumes bus events until ctx is cancelled or the bus closes. It is
// meant to be launched as a goroutine.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.bus.Subscribe()
	defer b.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			b.forward(ev)
		}
	}
}

func (b *Bridge) forward(ev eventbus.Event) {
	var (
		topic string
		msg   any
	)
	switch e := ev.(type) {
	case events.ReadingEvent:
		topic = b.prefix + "/reading"
		msg = readingMessage{
			Ph:        e.Reading.Ph,
			Ec:        e.Reading.Ec,
			WaterTemp: e.Reading.WaterTemp,
			Timestamp: e.Reading.ObservedAt,
		}
	case events.DoseEvent:
		topic = b.prefix + "/dose"
		m := doseMessage{
			Pump:      e.Record.Pump,
			AmountMl:  e.Record.AmountMl,
			Reason:    string(e.Record.Reason),
			Product:   e.Record.Product,
			Success:   e.Err == nil,
			Timestamp: e.Record.Timestamp,
		}
		if e.Err != nil {
			m.Error = e.Err.Error()
		}
		msg = m
	case events.StateEvent:
		topic = b.prefix + "/state"
		msg = stateMessage{
			Action:    e.Action,
			Enabled:   e.State.Enabled,
			Running:   e.State.Running,
			Timestamp: e.At,
		}
	default:
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Errorf("encode telemetry message: %v", err)
		return
	}
	if err := b.pub.Publish(topic, payload); err != nil {
		b.log.Errorf("telemetry publish failed: %v", err)
	}
}

package metrics

import (
	"context"

	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/logger"
	"github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/internal/eventbus"
)

// Bridge forwards dose events from the bus to the metrics sink so the sink
// does not need to be threaded through the executor.
type Bridge struct {
	sink metrics.MetricsSink
	bus  eventbus.EventBus
	log  logger.Logger
}

// NewBridge creates a Bridge.
func NewBridge(sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) *Bridge {
	return &Bridge{sink: sink, bus: bus, log: log}
}

// Run consumes bus events until ctx is cancelled or the bus closes.
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
			de, ok := ev.(events.DoseEvent)
			if !ok {
				continue
			}
			res := metrics.DoseResult{
				Record:  de.Record,
				Success: de.Err == nil,
				Latency: de.Latency,
			}
			if err := b.sink.RecordDoseResult([]metrics.DoseResult{res}); err != nil {
				b.log.Errorf("dose metrics error: %v", err)
			}
		}
	}
}

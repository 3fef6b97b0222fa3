package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutetra/doser/core/events"
	coremetrics "github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/infra/logger"
	"github.com/nutetra/doser/internal/eventbus"
)

type captureSink struct {
	mu      sync.Mutex
	results []coremetrics.DoseResult
}

func (s *captureSink) RecordDoseResult(results []coremetrics.DoseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, results...)
	return nil
}

func (s *captureSink) Results() []coremetrics.DoseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]coremetrics.DoseResult, len(s.results))
	copy(out, s.results)
	return out
}

func TestBridgeForwardsDoseResults(t *testing.T) {
	sink := &captureSink{}
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go NewBridge(sink, bus, logger.NopLogger{}).Run(ctx)
	time.Sleep(10 * time.Millisecond)

	bus.Publish(events.DoseEvent{
		Record:  model.DosingRecord{Pump: "Pump 1", AmountMl: 5, Reason: model.ReasonEcAdjustment},
		Latency: 200 * time.Millisecond,
	})
	bus.Publish(events.DoseEvent{
		Record: model.DosingRecord{Pump: "pH Down", AmountMl: 0.5, Reason: model.ReasonPhAdjustment},
		Err:    errors.New("pump jammed"),
	})
	bus.Publish(events.ReadingEvent{Reading: model.SensorReading{Ph: 6}})

	require.Eventually(t, func() bool { return len(sink.Results()) == 2 }, time.Second, 5*time.Millisecond)
	results := sink.Results()
	assert.True(t, results[0].Success)
	assert.Equal(t, "Pump 1", results[0].Record.Pump)
	assert.False(t, results[1].Success)
}

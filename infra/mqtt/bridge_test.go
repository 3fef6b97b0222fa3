package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutetra/doser/core/events"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/infra/logger"
	"github.com/nutetra/doser/internal/eventbus"
)

type capturedMsg struct {
	Topic   string
	Payload []byte
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []capturedMsg
}

func (p *capturePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, capturedMsg{topic, payload})
	return nil
}

func (p *capturePublisher) Disconnect() {}

func (p *capturePublisher) Messages() []capturedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capturedMsg, len(p.msgs))
	copy(out, p.msgs)
	return out
}

func startBridge(t *testing.T) (*capturePublisher, *eventbus.Bus) {
	t.Helper()
	pub := &capturePublisher{}
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := NewBridge(pub, bus, "greenhouse/doser", logger.NopLogger{})
	go b.Run(ctx)
	// Give the bridge a moment to subscribe before publishing.
	time.Sleep(10 * time.Millisecond)
	return pub, bus
}

func TestBridgeForwardsReadingEvents(t *testing.T) {
	pub, bus := startBridge(t)

	now := time.Now()
	bus.Publish(events.ReadingEvent{Reading: model.SensorReading{Ph: 6.1, Ec: 1.2, WaterTemp: 20, ObservedAt: now}})

	require.Eventually(t, func() bool { return len(pub.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := pub.Messages()[0]
	assert.Equal(t, "greenhouse/doser/reading", msg.Topic)

	var decoded readingMessage
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.InDelta(t, 6.1, decoded.Ph, 1e-9)
	assert.InDelta(t, 1.2, decoded.Ec, 1e-9)
}

func TestBridgeForwardsDoseEvents(t *testing.T) {
	pub, bus := startBridge(t)

	bus.Publish(events.DoseEvent{
		Record: model.DosingRecord{Pump: "Pump 1", AmountMl: 5, Reason: model.ReasonEcAdjustment, Product: "Grow A"},
	})
	bus.Publish(events.DoseEvent{
		Record: model.DosingRecord{Pump: "pH Up", AmountMl: 0.5, Reason: model.ReasonPhAdjustment},
		Err:    errors.New("pump jammed"),
	})

	require.Eventually(t, func() bool { return len(pub.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := pub.Messages()

	var ok doseMessage
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ok))
	assert.Equal(t, "greenhouse/doser/dose", msgs[0].Topic)
	assert.True(t, ok.Success)
	assert.Equal(t, "Grow A", ok.Product)

	var failed doseMessage
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &failed))
	assert.False(t, failed.Success)
	assert.Equal(t, "pump jammed", failed.Error)
}

func TestBridgeForwardsStateEvents(t *testing.T) {
	pub, bus := startBridge(t)

	bus.Publish(events.StateEvent{Action: "started", State: model.ControllerState{Enabled: true, Running: true}, At: time.Now()})

	require.Eventually(t, func() bool { return len(pub.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := pub.Messages()[0]
	assert.Equal(t, "greenhouse/doser/state", msg.Topic)

	var decoded stateMessage
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, "started", decoded.Action)
	assert.True(t, decoded.Enabled)
}

func TestBridgeIgnoresUnknownEvents(t *testing.T) {
	pub, bus := startBridge(t)

	bus.Publish("not a telemetry event")
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, pub.Messages())
}

func TestBridgeStopsWhenBusCloses(t *testing.T) {
	pub := &capturePublisher{}
	bus := eventbus.New()
	b := NewBridge(pub, bus, "", logger.NopLogger{})

	done := make(chan struct{})
	go func() {
		b.Run(context.Background())
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop after bus close")
	}
}

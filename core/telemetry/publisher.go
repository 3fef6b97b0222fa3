// Package telemetry defines the outbound messaging port for controller
// events.
package telemetry

// Publisher pushes telemetry payloads to an external broker. Implementations
// own their reconnection strategy; Publish returns an error only after
// retries are exhausted.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Disconnect()
}

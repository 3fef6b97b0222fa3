// Package infra holds the technical adapters: the device HTTP client, MQTT
// telemetry, metrics sinks and error monitoring. These packages depend only
// on the interfaces defined under core.
package infra

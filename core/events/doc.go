// Package events defines the controller events emitted on the event bus.
//
// Available event types:
//   - ReadingEvent: new sensor poll
//   - DoseEvent: result of one pump dispense
//   - StateEvent: lifecycle transition of the controller
package events

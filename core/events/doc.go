// Package events defines the control-cycle events emitted on the event bus.
//
// Available event types:
//   - CycleStartedEvent: a new optimization cycle begins
//   - PlanPublishedEvent: a plan was dispatched to the adapter
//   - CycleFailedEvent: a cycle ended without a fresh plan
//   - MeasurementIngestedEvent: a sample was recorded in the store
package events

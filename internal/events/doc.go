// Package events provides the in-process publish/subscribe channel that feeds
// the automation engine.
//
// Producers (HTTP handlers, the MQTT ingest bridge, the scheduler) publish an
// Event; the Bus delivers it synchronously to listeners registered for the
// event's Kind and then to listeners registered for AnyKind.
//
//	POST /api/v1/events ─┐
//	lifelog/event/{kind} ─┼─► Bus.Publish ─► kind listeners ─► AnyKind listeners
//	scheduler tick ──────┘                                      (automation.Engine)
//
// # Delivery Guarantees
//
//   - Synchronous: Publish returns only after every listener has returned.
//   - Ordered: listeners run in registration order, kind listeners first.
//   - Fire-and-forget: no buffering, replay, persistence or acknowledgement.
//   - Isolated: a panicking listener is recovered and logged; the rest still run.
//
// # Thread Safety
//
// Subscribe and Publish are safe for concurrent use. Listeners are snapshotted
// under a read lock and invoked outside it, so a listener may itself publish.
package events

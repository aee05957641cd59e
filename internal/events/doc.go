// Package events provides the event types and handler interfaces used to
// announce task status changes.
//
// Producers emit a StatusChangedEvent without knowing which handlers will
// process it; handlers (log, webhook, NATS) are registered on an emitter.
package events

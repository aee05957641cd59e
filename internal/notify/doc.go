// Package notify delivers task status change notifications.
//
// A Dispatcher accepts StatusChangedEvents from any number of producers
// without ever blocking them, and a single worker goroutine hands them, in
// the order they were accepted, to an events.EventHandler. Delivery is
// attempted once; failures are logged and counted, never retried.
//
// The handlers in this package are the available sinks: a structured log
// line, an HTTP webhook and a NATS subject.
package notify

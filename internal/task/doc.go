// Package task runs the simulated background processing of tasks.
//
// A Runner moves a task to in_progress, waits for the configured processing
// delay and then marks it completed, all through the lifecycle engine so
// that every step is logged and notified. Runs are detached from the request
// that started them and are not persisted: a run interrupted by shutdown
// leaves its task in_progress.
package task

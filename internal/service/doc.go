// Package service implements the task lifecycle engine: it validates
// requests, applies status transitions atomically through the store and
// announces every committed change to the notification pipeline.
package service

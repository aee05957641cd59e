// Package domain contains the task entity, its audit log entry, listing
// filters and the status transition policies. It has no dependency on storage
// or transport.
package domain

// Package store declares the persistence ports for tasks and their audit
// log, the DBTX query surface, and the transaction helper the service
// layer runs status transitions through. Implementations live under
// internal/platform.
package store

// Package testdb provides utilities for integration tests that need a real
// PostgreSQL database: locating it through the environment, applying the
// embedded migrations once and isolating each test in a rolled-back
// transaction.
//
// The package is only compiled with the integration build tag:
//
//	DATABASE_URL=postgres://... go test -tags=integration ./...
package testdb

// Package mocks provides centralized mock implementations for testing.
//
// The mocks keep working in-memory state so that tests can exercise real
// behavior without a database, and expose function fields to override any
// single method:
//
//	tasks := mocks.NewMockTaskStore()
//	tasks.DeleteFn = func(ctx context.Context, id int64) error {
//	    return store.ErrStorage
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Document any helper methods or special functionality
package mocks

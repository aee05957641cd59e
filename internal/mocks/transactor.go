package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/taskflow-api/internal/store"
)

// MockTransactor implements store.Transactor without a database: fn runs
// with a nil transaction, which MockTaskStore.WithTx accepts.
type MockTransactor struct {
	RunInTransactionFn func(ctx context.Context, fn store.TxFn) error

	mu    sync.Mutex
	calls int
}

var _ store.Transactor = (*MockTransactor)(nil)

// RunInTransaction implements store.Transactor.
func (m *MockTransactor) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunInTransactionFn != nil {
		return m.RunInTransactionFn(ctx, fn)
	}
	return fn(ctx, nil)
}

// Calls returns how many times RunInTransaction was invoked.
func (m *MockTransactor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

package engine

import (
	"context"
	"fmt"
	"sync"

	delivery "github.com/hanpama/gqlstream/internal/delivery"
)

// MockOutcome produces the outcome for one request; MockEngine adapts it
// for dispatch by operation name in tests.
type MockOutcome func(ctx context.Context, req Request) (delivery.ExecutionOutcome, error)

// NewMockSingle returns a MockOutcome that always yields a single result
// with the provided data.
func NewMockSingle(data map[string]any) MockOutcome {
	return func(ctx context.Context, req Request) (delivery.ExecutionOutcome, error) {
		r := delivery.NewQueryResult()
		r.Data = data
		return delivery.SingleOutcome(r), nil
	}
}

// NewMockError returns a MockOutcome that always fails with err.
func NewMockError(err error) MockOutcome {
	return func(ctx context.Context, req Request) (delivery.ExecutionOutcome, error) {
		return delivery.ExecutionOutcome{}, err
	}
}

// Call records one Execute invocation.
type Call struct {
	Query         string
	OperationName string
}

// MockEngine implements Engine with an outcome registry keyed by
// operation name ("" matches unnamed operations) and a call log.
type MockEngine struct {
	mu       sync.Mutex
	outcomes map[string]MockOutcome
	fallback MockOutcome
	calls    []Call
}

func NewMockEngine() *MockEngine {
	return &MockEngine{outcomes: make(map[string]MockOutcome)}
}

// SetOutcome registers or updates the outcome for an operation name.
func (m *MockEngine) SetOutcome(operationName string, fn MockOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[operationName] = fn
}

// SetFallback sets the outcome used when no operation name matches.
func (m *MockEngine) SetFallback(fn MockOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

func (m *MockEngine) Execute(ctx context.Context, req Request) (delivery.ExecutionOutcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Query: req.Query, OperationName: req.OperationName})
	fn, ok := m.outcomes[req.OperationName]
	if !ok {
		fn = m.fallback
	}
	m.mu.Unlock()
	if fn == nil {
		return delivery.ExecutionOutcome{}, fmt.Errorf("engine: no mock outcome for operation %q", req.OperationName)
	}
	return fn(ctx, req)
}

// GetCalls returns a copy of the recorded calls in invocation order.
func (m *MockEngine) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

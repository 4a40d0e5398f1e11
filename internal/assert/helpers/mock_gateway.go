package helpers

import (
	"context"
	"sync"

	"github.com/kimalale/tactical-workflow-manager/internal/dbproxy"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// MockGateway is an in-process dbproxy.Gateway that records requests and
// returns configured results per operation
type MockGateway struct {
	mu       sync.Mutex
	results  map[api.Operation]any
	errors   map[api.Operation]error
	testErrs map[string]error
	requests []*api.DatabaseExecuteRequest
}

var _ dbproxy.Gateway = (*MockGateway)(nil)

// NewMockGateway creates a gateway that succeeds with nil results
func NewMockGateway() *MockGateway {
	return &MockGateway{
		results:  map[api.Operation]any{},
		errors:   map[api.Operation]error{},
		testErrs: map[string]error{},
	}
}

// Execute records the request and returns the configured result or error
func (g *MockGateway) Execute(
	_ context.Context, req *api.DatabaseExecuteRequest,
) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if err, ok := g.errors[req.Operation]; ok {
		return nil, err
	}
	return g.results[req.Operation], nil
}

// Test returns the configured test error for the connection, if any
func (g *MockGateway) Test(
	_ context.Context, conn *api.DatabaseConnection,
) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.testErrs[conn.Name]
}

// SetResult configures the result returned for an operation
func (g *MockGateway) SetResult(op api.Operation, res any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[op] = res
}

// SetError configures an operation to fail
func (g *MockGateway) SetError(op api.Operation, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors[op] = err
}

// SetTestError configures a connection test to fail
func (g *MockGateway) SetTestError(name string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.testErrs[name] = err
}

// Requests returns every executed request in order
func (g *MockGateway) Requests() []*api.DatabaseExecuteRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	res := make([]*api.DatabaseExecuteRequest, len(g.requests))
	copy(res, g.requests)
	return res
}

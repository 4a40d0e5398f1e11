package engine

import (
	"maps"
	"sync"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// Board is the UI-facing snapshot of node and edge state. Every run writes
// to it, last write wins; runs never read it back
type Board struct {
	mu    sync.RWMutex
	nodes map[api.NodeID]*api.NodeState
	edges map[api.EdgeID]*api.EdgeState
}

// NewBoard creates an empty board
func NewBoard() *Board {
	return &Board{
		nodes: map[api.NodeID]*api.NodeState{},
		edges: map[api.EdgeID]*api.EdgeState{},
	}
}

// UpdateNode applies fn to a copy of the node's state and stores it
func (b *Board) UpdateNode(id api.NodeID, fn func(*api.NodeState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns := &api.NodeState{Status: api.NodeReady}
	if cur, ok := b.nodes[id]; ok {
		cp := *cur
		ns = &cp
	}
	fn(ns)
	b.nodes[id] = ns
}

// SetEdgePayload records the payload last sent along an edge
func (b *Board) SetEdgePayload(id api.EdgeID, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edges[id] = &api.EdgeState{LastPayload: payload}
}

// Snapshot returns a copy of the board
func (b *Board) Snapshot() *api.BoardResponse {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &api.BoardResponse{
		Nodes: maps.Clone(b.nodes),
		Edges: maps.Clone(b.edges),
	}
}

// Reset clears the board, typically when a new workflow is installed
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.nodes)
	clear(b.edges)
}

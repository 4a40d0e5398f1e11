package graph

import (
	"errors"
	"fmt"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// Graph is the read-only adjacency view of a workflow document that the
// scheduler walks. Plain edges are keyed by source node id and
// handle-qualified edges by "<source>:<handle>"
type Graph struct {
	nodes    map[api.NodeID]*api.Node
	order    []api.NodeID
	children map[string][]api.NodeID
	outgoing map[api.NodeID][]*api.Edge
	incoming map[api.NodeID][]*api.Edge
}

var (
	ErrEmptyGraph    = errors.New("no nodes to execute")
	ErrNoStartNodes  = errors.New("no start nodes found")
	ErrDanglingEdge  = errors.New("edge references missing node")
	ErrDuplicateNode = api.ErrDuplicateNodeID
)

// Build indexes nodes and edges. Edge and node order follow the document,
// which fixes start-node order and which parent feeds a join
func Build(nodes []*api.Node, edges []*api.Edge) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	g := &Graph{
		nodes:    make(map[api.NodeID]*api.Node, len(nodes)),
		order:    make([]api.NodeID, 0, len(nodes)),
		children: map[string][]api.NodeID{},
		outgoing: map[api.NodeID][]*api.Edge{},
		incoming: map[api.NodeID][]*api.Edge{},
	}
	for _, n := range nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}

	for _, e := range edges {
		_, src := g.nodes[e.Source]
		_, tgt := g.nodes[e.Target]
		if !src || !tgt {
			return nil, fmt.Errorf("%w: %s (%s -> %s)",
				ErrDanglingEdge, e.ID, e.Source, e.Target)
		}
		key := EdgeKey(e.Source, e.SourceHandle)
		g.children[key] = append(g.children[key], e.Target)
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
	}

	if len(g.StartNodes()) == 0 {
		return nil, ErrNoStartNodes
	}
	return g, nil
}

// FromDocument builds the graph of a workflow document
func FromDocument(doc *api.Document) (*Graph, error) {
	return Build(doc.Nodes, doc.Edges)
}

// EdgeKey returns the adjacency key for edges leaving source through handle
func EdgeKey(source api.NodeID, handle api.Handle) string {
	if handle == "" {
		return string(source)
	}
	return string(source) + ":" + string(handle)
}

// Node returns the node with the given id
func (g *Graph) Node(id api.NodeID) (*api.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in document order
func (g *Graph) Nodes() []*api.Node {
	res := make([]*api.Node, len(g.order))
	for i, id := range g.order {
		res[i] = g.nodes[id]
	}
	return res
}

// StartNodes returns the nodes with no incoming edges, in document order
func (g *Graph) StartNodes() []api.NodeID {
	var res []api.NodeID
	for _, id := range g.order {
		if len(g.incoming[id]) == 0 {
			res = append(res, id)
		}
	}
	return res
}

// Children returns the targets of edges under an adjacency key
func (g *Graph) Children(key string) []api.NodeID {
	return g.children[key]
}

// PlainChildren returns the targets of id's edges that carry no handle
func (g *Graph) PlainChildren(id api.NodeID) []api.NodeID {
	return g.children[EdgeKey(id, "")]
}

// BranchChildren returns the targets of id's edges through handle
func (g *Graph) BranchChildren(id api.NodeID, h api.Handle) []api.NodeID {
	return g.children[EdgeKey(id, h)]
}

// Incoming returns the edges entering id in document order
func (g *Graph) Incoming(id api.NodeID) []*api.Edge {
	return g.incoming[id]
}

// Outgoing returns the edges leaving id in document order
func (g *Graph) Outgoing(id api.NodeID) []*api.Edge {
	return g.outgoing[id]
}

// InDegree returns the number of edges entering id
func (g *Graph) InDegree(id api.NodeID) int {
	return len(g.incoming[id])
}

// Parents returns the source of every edge entering id, in edge order
func (g *Graph) Parents(id api.NodeID) []api.NodeID {
	edges := g.incoming[id]
	res := make([]api.NodeID, len(edges))
	for i, e := range edges {
		res[i] = e.Source
	}
	return res
}

// InputSource returns the parent whose result becomes id's input: the
// source of its first incoming edge. On a join the other parents' results
// are not passed to the node
func (g *Graph) InputSource(id api.NodeID) (api.NodeID, bool) {
	edges := g.incoming[id]
	if len(edges) == 0 {
		return "", false
	}
	return edges[0].Source, true
}

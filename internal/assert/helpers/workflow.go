package helpers

import "github.com/kimalale/tactical-workflow-manager/pkg/api"

// LuaNode creates a Lua node of the given kind
func LuaNode(id api.NodeID, kind api.NodeKind, script string) *api.Node {
	return &api.Node{
		ID:       id,
		Kind:     kind,
		Label:    string(id),
		Script:   script,
		Language: api.ScriptLangLua,
	}
}

// Edge creates a plain edge from source to target
func Edge(source, target api.NodeID) *api.Edge {
	return &api.Edge{
		ID:     api.EdgeID(string(source) + "-" + string(target)),
		Source: source,
		Target: target,
	}
}

// BranchEdge creates an edge leaving source through handle
func BranchEdge(source, target api.NodeID, h api.Handle) *api.Edge {
	id := string(source) + "-" + string(h) + "-" + string(target)
	return &api.Edge{
		ID:           api.EdgeID(id),
		Source:       source,
		Target:       target,
		SourceHandle: h,
	}
}

// Document assembles a workflow document
func Document(nodes []*api.Node, edges ...*api.Edge) *api.Document {
	return &api.Document{
		Nodes:    nodes,
		Edges:    edges,
		Metadata: api.Metadata{Version: api.DocumentVersion},
	}
}

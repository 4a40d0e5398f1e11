package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// NodeID uniquely identifies a node within a workflow
	NodeID string

	// EdgeID uniquely identifies an edge within a workflow
	EdgeID string

	// NodeKind is the variant tag that determines a node's scheduling
	// behavior
	NodeKind string

	// Handle is an edge's named branch selector
	Handle string

	// Node is a scriptable unit of work in a workflow graph
	Node struct {
		ID       NodeID    `json:"id"`
		Kind     NodeKind  `json:"kind"`
		Label    string    `json:"label"`
		Script   string    `json:"script"`
		Language string    `json:"language,omitempty"`
		Position *Position `json:"position,omitempty"`
	}

	// Position is the editor canvas position of a node. The engine ignores
	// it but preserves it across load and save
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Edge connects the output of a source node to a target node
	Edge struct {
		ID           EdgeID `json:"id"`
		Source       NodeID `json:"source"`
		Target       NodeID `json:"target"`
		SourceHandle Handle `json:"sourceHandle,omitempty"`
	}

	// Document is the persisted workflow layout
	Document struct {
		Nodes    []*Node  `json:"nodes"`
		Edges    []*Edge  `json:"edges"`
		Metadata Metadata `json:"metadata"`
	}

	// Metadata describes the persisted document format
	Metadata struct {
		Version string    `json:"version,omitempty"`
		Created time.Time `json:"created,omitzero"`
	}

	// nodeData is the editor's nested node payload
	nodeData struct {
		Label    string `json:"label"`
		Code     string `json:"code"`
		NodeType string `json:"nodeType"`
		Language string `json:"language"`
	}
)

const (
	KindBasic     NodeKind = "basic"
	KindHTTP      NodeKind = "http"
	KindCondition NodeKind = "condition"
	KindLoop      NodeKind = "loop"
	KindWebhook   NodeKind = "webhook"
	KindStorage   NodeKind = "storage"
	KindDatabase  NodeKind = "database"
	KindTable     NodeKind = "table"
	KindImported  NodeKind = "imported"
)

const (
	HandleTrue  Handle = "true"
	HandleFalse Handle = "false"
)

const (
	ScriptLangLua   = "lua"
	ScriptLangGJSON = "gjson"
	ScriptLangAle   = "ale"
)

// DocumentVersion is the format version written into saved documents
const DocumentVersion = "4.0.0"

var (
	ErrNodeIDRequired  = errors.New("node id is required")
	ErrDuplicateNodeID = errors.New("duplicate node id")
	ErrEdgeEndpoints   = errors.New("edge source and target are required")
	ErrInvalidLanguage = errors.New("invalid script language")
)

// UnmarshalJSON accepts both the flat node layout and the editor layout
// that nests label, code and nodeType under a data object
func (n *Node) UnmarshalJSON(b []byte) error {
	type flat Node
	var raw struct {
		flat
		Data *nodeData `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = Node(raw.flat)
	if d := raw.Data; d != nil {
		if n.Label == "" {
			n.Label = d.Label
		}
		if n.Script == "" {
			n.Script = d.Code
		}
		if n.Kind == "" {
			n.Kind = NodeKind(d.NodeType)
		}
		if n.Language == "" {
			n.Language = d.Language
		}
	}
	n.Kind = NormalizeKind(n.Kind)
	return nil
}

// UnmarshalJSON accepts the persisted "handle" alias for sourceHandle
func (e *Edge) UnmarshalJSON(b []byte) error {
	type flat Edge
	var raw struct {
		flat
		Handle Handle `json:"handle,omitempty"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Edge(raw.flat)
	if e.SourceHandle == "" {
		e.SourceHandle = raw.Handle
	}
	return nil
}

// NormalizeKind lower-cases an editor node type. An empty kind is Basic
func NormalizeKind(k NodeKind) NodeKind {
	res := NodeKind(strings.ToLower(strings.TrimSpace(string(k))))
	if res == "" {
		return KindBasic
	}
	return res
}

// ScriptLanguage returns the node's script language, defaulting to Lua
func (n *Node) ScriptLanguage() string {
	if n.Language == "" {
		return ScriptLangLua
	}
	return n.Language
}

// DisplayName returns the label if set, otherwise the node id
func (n *Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return string(n.ID)
}

// Validate checks that node ids are present and unique, that every edge
// names both endpoints, and that script languages are known. Whether edge
// endpoints exist is a structural concern checked when the graph is built
func (d *Document) Validate() error {
	seen := map[NodeID]bool{}
	for _, n := range d.Nodes {
		if n == nil || n.ID == "" {
			return ErrNodeIDRequired
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = true
		switch n.ScriptLanguage() {
		case ScriptLangLua, ScriptLangGJSON, ScriptLangAle:
		default:
			return fmt.Errorf("%w: %s", ErrInvalidLanguage, n.Language)
		}
	}
	for _, e := range d.Edges {
		if e == nil || e.Source == "" || e.Target == "" {
			return ErrEdgeEndpoints
		}
	}
	return nil
}

// RemoveNode deletes a node together with its incident edges
func (d *Document) RemoveNode(id NodeID) {
	nodes := d.Nodes[:0]
	for _, n := range d.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	d.Nodes = nodes

	edges := d.Edges[:0]
	for _, e := range d.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	d.Edges = edges
}

package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

// Workflow is an immutable builder for workflow documents. Every With or
// Connect call returns a new builder and leaves the receiver untouched
type Workflow struct {
	client *Client
	nodes  []*api.Node
	edges  []*api.Edge
}

// NewWorkflow creates an empty document builder with no client attached
func NewWorkflow() *Workflow {
	return &Workflow{}
}

// NewWorkflow creates an empty document builder that can Install itself
func (c *Client) NewWorkflow() *Workflow {
	return &Workflow{client: c}
}

// WithNode adds a Lua node
func (w *Workflow) WithNode(
	id api.NodeID, kind api.NodeKind, script string,
) *Workflow {
	return w.WithScriptNode(id, kind, api.ScriptLangLua, script)
}

// WithScriptNode adds a node whose script is written in language
func (w *Workflow) WithScriptNode(
	id api.NodeID, kind api.NodeKind, language, script string,
) *Workflow {
	return w.withNode(&api.Node{
		ID:       id,
		Kind:     kind,
		Label:    string(id),
		Script:   script,
		Language: language,
	})
}

// WithLabel sets the display label of an already added node
func (w *Workflow) WithLabel(id api.NodeID, label string) *Workflow {
	res := w.clone()
	for i, n := range res.nodes {
		if n.ID == id {
			cp := *n
			cp.Label = label
			res.nodes[i] = &cp
		}
	}
	return res
}

// Connect adds an unconditional edge from src to tgt
func (w *Workflow) Connect(src, tgt api.NodeID) *Workflow {
	return w.withEdge(&api.Edge{
		ID:     api.EdgeID(fmt.Sprintf("%s-%s", src, tgt)),
		Source: src,
		Target: tgt,
	})
}

// Branch adds an edge that is only followed when src selects handle
func (w *Workflow) Branch(
	src api.NodeID, h api.Handle, tgt api.NodeID,
) *Workflow {
	return w.withEdge(&api.Edge{
		ID:           api.EdgeID(fmt.Sprintf("%s-%s-%s", src, h, tgt)),
		Source:       src,
		Target:       tgt,
		SourceHandle: h,
	})
}

// Build validates and returns the document
func (w *Workflow) Build() (*api.Document, error) {
	doc := &api.Document{
		Nodes: append([]*api.Node{}, w.nodes...),
		Edges: append([]*api.Edge{}, w.edges...),
		Metadata: api.Metadata{
			Version: api.DocumentVersion,
			Created: time.Now(),
		},
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Install builds the document and makes it the engine's current workflow
func (w *Workflow) Install(ctx context.Context) error {
	if w.client == nil {
		return fmt.Errorf("%w: no client", ErrInstallWorkflow)
	}
	doc, err := w.Build()
	if err != nil {
		return err
	}
	return w.client.InstallWorkflow(ctx, doc)
}

func (w *Workflow) withNode(n *api.Node) *Workflow {
	res := w.clone()
	res.nodes = append(res.nodes, n)
	return res
}

func (w *Workflow) withEdge(e *api.Edge) *Workflow {
	res := w.clone()
	res.edges = append(res.edges, e)
	return res
}

func (w *Workflow) clone() *Workflow {
	res := *w
	res.nodes = make([]*api.Node, len(w.nodes))
	copy(res.nodes, w.nodes)
	res.edges = make([]*api.Edge, len(w.edges))
	copy(res.edges, w.edges)
	return &res
}

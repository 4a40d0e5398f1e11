package api

import "time"

type (
	// RunID uniquely identifies one execution of a workflow
	RunID string

	// RunStatus is the overall outcome of a run
	RunStatus string

	// NodeStatus is the per-run lifecycle state of a node
	NodeStatus string

	// TriggerType names what started a run
	TriggerType string

	// RunState is the complete state of one run. Executed holds one result
	// per completed node; LoopState holds loop-local objects only while a
	// Loop node is mid-iteration
	RunState struct {
		ID          RunID                 `json:"id"`
		Status      RunStatus             `json:"status"`
		Trigger     TriggerType           `json:"trigger"`
		Executed    map[NodeID]any        `json:"executed"`
		LoopState   map[NodeID]any        `json:"loop_state,omitempty"`
		Queue       []NodeID              `json:"queue"`
		Nodes       map[NodeID]*NodeState `json:"nodes"`
		Edges       map[EdgeID]*EdgeState `json:"edges,omitempty"`
		StartedAt   time.Time             `json:"started_at"`
		CompletedAt time.Time             `json:"completed_at,omitzero"`
		Duration    int64                 `json:"duration"`
		Error       string                `json:"error,omitempty"`
	}

	// NodeState is a node's status and last result as observed by a run
	NodeState struct {
		Status         NodeStatus `json:"status"`
		LastExecutedAt time.Time  `json:"last_executed_at,omitzero"`
		LastResult     any        `json:"last_result,omitempty"`
		Error          string     `json:"error,omitempty"`
		LoopCount      int        `json:"loop_count,omitempty"`
	}

	// EdgeState carries the display-only payload last sent along an edge
	EdgeState struct {
		LastPayload string `json:"last_payload"`
	}

	// RunDigest provides summary information about a run
	RunDigest struct {
		ID          RunID       `json:"id"`
		Status      RunStatus   `json:"status"`
		Trigger     TriggerType `json:"trigger"`
		StartedAt   time.Time   `json:"started_at"`
		CompletedAt time.Time   `json:"completed_at,omitzero"`
		Duration    int64       `json:"duration"`
	}
)

const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

const (
	NodeReady    NodeStatus = "ready"
	NodeRunning  NodeStatus = "running"
	NodeComplete NodeStatus = "complete"
	NodeError    NodeStatus = "error"
)

const (
	TriggerManual   TriggerType = "manual"
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
)

// IsTerminal returns true if the run has finished
func (s RunStatus) IsTerminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunCancelled
}

// Digest summarizes the run
func (r *RunState) Digest() *RunDigest {
	return &RunDigest{
		ID:          r.ID,
		Status:      r.Status,
		Trigger:     r.Trigger,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Duration:    r.Duration,
	}
}

// NodeStatusOf returns the run's view of a node's status. Nodes the run
// never touched are Ready
func (r *RunState) NodeStatusOf(id NodeID) NodeStatus {
	if ns, ok := r.Nodes[id]; ok {
		return ns.Status
	}
	return NodeReady
}

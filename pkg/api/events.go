package api

import "time"

type (
	// EventType names a live engine event
	EventType string

	// LogType classifies console log entries
	LogType string

	// Event is published on the engine's event hub for live display
	Event struct {
		Type      EventType `json:"type"`
		RunID     RunID     `json:"run_id,omitempty"`
		NodeID    NodeID    `json:"node_id,omitempty"`
		Data      any       `json:"data,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}

	// LogEntry is one line of the user-visible console trail. NodeID is the
	// originating node, or a subsystem tag such as SYSTEM or WEBHOOK
	LogEntry struct {
		Timestamp time.Time `json:"timestamp"`
		NodeID    string    `json:"nodeId"`
		Message   string    `json:"message"`
		Type      LogType   `json:"type"`
	}
)

const (
	EventRunStarted    EventType = "run_started"
	EventRunCompleted  EventType = "run_completed"
	EventNodeStarted   EventType = "node_started"
	EventNodeCompleted EventType = "node_completed"
	EventNodeFailed    EventType = "node_failed"
	EventNodeLooping   EventType = "node_looping"
	EventNodeBranched  EventType = "node_branched"
	EventLog           EventType = "log"
	EventWebhook       EventType = "webhook_triggered"
	EventSchedule      EventType = "schedule_triggered"
)

const (
	LogInfo  LogType = "info"
	LogError LogType = "error"
)

// Console tags for log entries that are not emitted by a node
const (
	TagSystem    = "SYSTEM"
	TagWebhook   = "WEBHOOK"
	TagScheduler = "SCHEDULER"
	TagStorage   = "STORAGE"
	TagDatabase  = "DB"
)

package api

import "time"

// ExecutionRecord is the outcome of one run as appended to the execution
// history
type ExecutionRecord struct {
	ID        string      `json:"id"`
	RunID     RunID       `json:"runId"`
	Timestamp time.Time   `json:"timestamp"`
	Status    RunStatus   `json:"status"`
	Duration  int64       `json:"duration"`
	Trigger   TriggerType `json:"trigger"`
}

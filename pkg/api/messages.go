package api

import "encoding/json"

type (
	// ErrorResponse is returned by the HTTP API on failure
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	// RunRequest starts a run of the current workflow. With Wait set, the
	// response carries the finished run state
	RunRequest struct {
		Payload any  `json:"payload,omitempty"`
		Wait    bool `json:"wait,omitempty"`
	}

	// RunStartedResponse is returned when a run is started asynchronously
	RunStartedResponse struct {
		Message string `json:"message"`
		RunID   RunID  `json:"run_id"`
	}

	// RunsListResponse contains summaries of known runs
	RunsListResponse struct {
		Runs  []*RunDigest `json:"runs"`
		Count int          `json:"count"`
	}

	// WorkflowLoadedResponse is returned when a document is installed
	WorkflowLoadedResponse struct {
		Message   string `json:"message"`
		NodeCount int    `json:"node_count"`
		EdgeCount int    `json:"edge_count"`
	}

	// BoardResponse is the UI-facing snapshot of node and edge state
	BoardResponse struct {
		Nodes map[NodeID]*NodeState `json:"nodes"`
		Edges map[EdgeID]*EdgeState `json:"edges"`
	}

	// CreateWebhookRequest names a new webhook
	CreateWebhookRequest struct {
		Name string `json:"name"`
	}

	// WebhookTriggeredResponse is returned when a webhook starts a run
	WebhookTriggeredResponse struct {
		Message string `json:"message"`
		RunID   RunID  `json:"run_id"`
	}

	// CreateScheduleRequest adds an interval schedule
	CreateScheduleRequest struct {
		IntervalSeconds int `json:"intervalSeconds"`
	}

	// SchedulesResponse lists schedules and whether they are running
	SchedulesResponse struct {
		Schedules []*Schedule `json:"schedules"`
		Running   bool        `json:"running"`
	}

	// SetVariableRequest carries a variable value
	SetVariableRequest struct {
		Value json.RawMessage `json:"value"`
	}

	// VariableResponse carries one variable
	VariableResponse struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}

	// HistoryResponse lists execution records
	HistoryResponse struct {
		Executions []*ExecutionRecord `json:"executions"`
		Count      int                `json:"count"`
	}

	// LogsResponse lists console entries
	LogsResponse struct {
		Logs  []*LogEntry `json:"logs"`
		Count int         `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}
)

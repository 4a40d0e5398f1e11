package api

type (
	// SubscribeRequest is sent by WebSocket clients to select events
	SubscribeRequest struct {
		Type string             `json:"type"`
		Data ClientSubscription `json:"data"`
	}

	// ClientSubscription filters the event stream. Empty fields match all
	ClientSubscription struct {
		EventTypes []EventType `json:"event_types,omitempty"`
		RunID      RunID       `json:"run_id,omitempty"`
	}

	// SubscribedResult acknowledges a subscription
	SubscribedResult struct {
		Type  string `json:"type"`
		RunID RunID  `json:"run_id,omitempty"`
		Data  any    `json:"data,omitempty"`
	}
)

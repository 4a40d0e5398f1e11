package api

import "time"

type (
	// WebhookID uniquely identifies a webhook
	WebhookID string

	// ScheduleID uniquely identifies an interval schedule
	ScheduleID string

	// Webhook is a named trigger that starts a run with a payload
	Webhook struct {
		ID           WebhookID `json:"id"`
		Name         string    `json:"name"`
		Active       bool      `json:"active"`
		TriggerCount int       `json:"triggerCount"`
	}

	// WebhookEvent records one accepted webhook invocation
	WebhookEvent struct {
		Timestamp time.Time `json:"timestamp"`
		Webhook   string    `json:"webhook"`
		RunID     RunID     `json:"runId,omitempty"`
		Data      any       `json:"data"`
	}

	// Schedule starts a run every IntervalSeconds while schedules run
	Schedule struct {
		ID              ScheduleID `json:"id"`
		IntervalSeconds int        `json:"intervalSeconds"`
		NextRunAt       time.Time  `json:"nextRunAt"`
	}
)

// Interval returns the schedule period as a duration
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

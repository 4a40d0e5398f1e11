package trigger

import (
	"context"
	"errors"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// Starter begins a run of the installed workflow
	Starter interface {
		StartCurrent(seed any, trigger api.TriggerType) (api.RunID, error)
	}

	// Console receives the user-visible trigger log lines
	Console interface {
		Add(ctx context.Context, tag, msg string, typ api.LogType)
	}

	// Publisher receives live trigger events
	Publisher interface {
		Publish(ev *api.Event)
	}
)

var (
	ErrWebhookNotFound     = errors.New("webhook not found")
	ErrWebhookInactive     = errors.New("webhook is inactive")
	ErrWebhookNameRequired = errors.New("webhook name is required")
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrInvalidInterval     = errors.New("schedule interval must be positive")
)

package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

// Webhooks is the registry of named webhook triggers. Triggering an active
// webhook starts a run seeded with the request payload
type Webhooks struct {
	mu      sync.RWMutex
	hooks   []*api.Webhook
	events  []*api.WebhookEvent
	limit   int
	runs    Starter
	console Console
	pub     Publisher
	now     func() time.Time
}

const (
	webhookIDPrefix   = "wh_"
	DefaultEventLimit = 100
)

// NewWebhooks creates an empty registry retaining at most limit events.
// The publisher may be nil
func NewWebhooks(
	runs Starter, console Console, pub Publisher, limit int,
) *Webhooks {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return &Webhooks{
		limit:   limit,
		runs:    runs,
		console: console,
		pub:     pub,
		now:     time.Now,
	}
}

// Add registers an active webhook
func (w *Webhooks) Add(ctx context.Context, name string) (*api.Webhook, error) {
	if name == "" {
		return nil, ErrWebhookNameRequired
	}
	wh := &api.Webhook{
		ID:     api.WebhookID(webhookIDPrefix + uuid.NewString()),
		Name:   name,
		Active: true,
	}
	w.mu.Lock()
	w.hooks = append(w.hooks, wh)
	w.mu.Unlock()

	w.console.Add(ctx, api.TagWebhook, "Created: "+name, api.LogInfo)
	res := *wh
	return &res, nil
}

// Remove deletes a webhook
func (w *Webhooks) Remove(ctx context.Context, id api.WebhookID) error {
	w.mu.Lock()
	idx := w.indexOf(id)
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWebhookNotFound, id)
	}
	w.hooks = slices.Delete(w.hooks, idx, idx+1)
	w.mu.Unlock()

	w.console.Add(ctx, api.TagWebhook, "Removed", api.LogInfo)
	return nil
}

// Toggle flips a webhook between active and inactive
func (w *Webhooks) Toggle(id api.WebhookID) (*api.Webhook, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrWebhookNotFound, id)
	}
	wh := *w.hooks[idx]
	wh.Active = !wh.Active
	w.hooks[idx] = &wh
	res := wh
	return &res, nil
}

// List returns every webhook in creation order
func (w *Webhooks) List() []*api.Webhook {
	w.mu.RLock()
	defer w.mu.RUnlock()
	res := make([]*api.Webhook, len(w.hooks))
	for i, wh := range w.hooks {
		cp := *wh
		res[i] = &cp
	}
	return res
}

// Events returns the accepted invocations, oldest first
func (w *Webhooks) Events() []*api.WebhookEvent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.events)
}

// Trigger accepts an invocation of an active webhook and starts a run
// seeded with payload
func (w *Webhooks) Trigger(
	ctx context.Context, id api.WebhookID, payload any,
) (*api.WebhookEvent, error) {
	w.mu.Lock()
	idx := w.indexOf(id)
	if idx < 0 {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWebhookNotFound, id)
	}
	if !w.hooks[idx].Active {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWebhookInactive, id)
	}
	wh := *w.hooks[idx]
	wh.TriggerCount++
	w.hooks[idx] = &wh
	w.mu.Unlock()

	w.console.Add(ctx, api.TagWebhook, "Triggered: "+wh.Name, api.LogInfo)

	runID, err := w.runs.StartCurrent(payload, api.TriggerWebhook)
	if err != nil {
		slog.Error("Webhook run failed to start",
			slog.String("webhook_id", string(id)),
			log.Error(err))
	}

	ev := &api.WebhookEvent{
		Timestamp: w.now(),
		Webhook:   wh.Name,
		RunID:     runID,
		Data:      payload,
	}
	w.mu.Lock()
	w.events = append(w.events, ev)
	if len(w.events) > w.limit {
		w.events = w.events[len(w.events)-w.limit:]
	}
	w.mu.Unlock()

	if w.pub != nil {
		w.pub.Publish(&api.Event{
			Type:  api.EventWebhook,
			RunID: runID,
			Data:  ev,
		})
	}
	return ev, err
}

func (w *Webhooks) indexOf(id api.WebhookID) int {
	return slices.IndexFunc(w.hooks, func(wh *api.Webhook) bool {
		return wh.ID == id
	})
}

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kimalale/tactical-workflow-manager/internal/events"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

// Console is the user-visible log trail of the engine and its scripts. It
// keeps the most recent entries, forwards each to slog, and publishes it on
// the event hub
type Console struct {
	mu      sync.RWMutex
	entries []*api.LogEntry
	limit   int
	hub     *events.Hub
	now     func() time.Time
}

type runIDKey struct{}

// NewConsole creates a console retaining at most limit entries. The hub
// may be nil
func NewConsole(limit int, hub *events.Hub) *Console {
	return &Console{
		limit: limit,
		hub:   hub,
		now:   time.Now,
	}
}

// WithRunID tags a context with the run it executes for
func WithRunID(ctx context.Context, id api.RunID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run a context was tagged with
func RunIDFrom(ctx context.Context) api.RunID {
	id, _ := ctx.Value(runIDKey{}).(api.RunID)
	return id
}

// Info records script output, tagged with the node's display name
func (c *Console) Info(ctx context.Context, node *api.Node, msg string) {
	c.Add(ctx, node.DisplayName(), msg, api.LogInfo)
}

// Error records script error output, tagged with the node id
func (c *Console) Error(ctx context.Context, node *api.Node, msg string) {
	c.Add(ctx, string(node.ID), msg, api.LogError)
}

// System records an engine message
func (c *Console) System(ctx context.Context, msg string) {
	c.Add(ctx, api.TagSystem, msg, api.LogInfo)
}

// Add records an entry under an arbitrary tag
func (c *Console) Add(
	ctx context.Context, tag, msg string, typ api.LogType,
) {
	entry := &api.LogEntry{
		Timestamp: c.now(),
		NodeID:    tag,
		Message:   msg,
		Type:      typ,
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry)
	if c.limit > 0 && len(c.entries) > c.limit {
		c.entries = c.entries[len(c.entries)-c.limit:]
	}
	c.mu.Unlock()

	runID := RunIDFrom(ctx)
	if typ == api.LogError {
		slog.Error(msg, slog.String("tag", tag), log.RunID(runID))
	} else {
		slog.Debug(msg, slog.String("tag", tag), log.RunID(runID))
	}

	if c.hub != nil {
		c.hub.Publish(&api.Event{
			Type:      api.EventLog,
			RunID:     runID,
			Data:      entry,
			Timestamp: entry.Timestamp,
		})
	}
}

// Entries returns the retained entries, oldest first
func (c *Console) Entries() []*api.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]*api.LogEntry, len(c.entries))
	copy(res, c.entries)
	return res
}

// Clear drops every retained entry
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

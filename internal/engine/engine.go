package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimalale/tactical-workflow-manager/internal/config"
	"github.com/kimalale/tactical-workflow-manager/internal/events"
	"github.com/kimalale/tactical-workflow-manager/internal/graph"
	"github.com/kimalale/tactical-workflow-manager/internal/history"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

type (
	// Engine executes workflow runs. Each run owns its state; node results
	// are published to the shared Board and event hub only
	Engine struct {
		ctx      context.Context
		cancel   context.CancelFunc
		config   *config.Config
		sandbox  Sandbox
		console  *Console
		board    *Board
		hub      *events.Hub
		history  history.Sink
		now      func() time.Time
		wg       sync.WaitGroup
		mu       sync.RWMutex
		runs     map[api.RunID]*runEntry
		retired  []api.RunID
		workflow *api.Document
	}

	// Sandbox executes a node's script with its input and loop state
	Sandbox interface {
		Execute(
			ctx context.Context, node *api.Node, input, loop any,
		) (any, any, error)
	}

	runEntry struct {
		mu     sync.RWMutex
		state  *api.RunState
		cancel context.CancelFunc
		done   chan struct{}
	}
)

var (
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
	ErrRunNotFound     = errors.New("run not found")
	ErrNoWorkflow      = errors.New("no workflow loaded")
	ErrEngineStopped   = errors.New("engine stopped")
	ErrLoopLimit       = errors.New("loop iteration limit exceeded")
)

// New creates an engine. The console should be the same one handed to the
// sandbox as its script logger
func New(
	cfg *config.Config, sb Sandbox, console *Console, hub *events.Hub,
	sink history.Sink,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		ctx:     ctx,
		cancel:  cancel,
		config:  cfg,
		sandbox: sb,
		console: console,
		board:   NewBoard(),
		hub:     hub,
		history: sink,
		now:     time.Now,
		runs:    map[api.RunID]*runEntry{},
	}
}

// Stop cancels every active run and waits for them to finish
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Engine stopped")
		return nil
	case <-time.After(e.config.ShutdownTimeout):
		return ErrShutdownTimeout
	}
}

// SetWorkflow installs the document that triggers and manual runs execute,
// and resets the board
func (e *Engine) SetWorkflow(doc *api.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.workflow = doc
	e.mu.Unlock()
	e.board.Reset()

	slog.Info("Workflow installed",
		slog.Int("node_count", len(doc.Nodes)),
		slog.Int("edge_count", len(doc.Edges)))
	return nil
}

// Workflow returns the installed document
func (e *Engine) Workflow() (*api.Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workflow, e.workflow != nil
}

// StartCurrent starts an asynchronous run of the installed workflow
func (e *Engine) StartCurrent(
	seed any, trigger api.TriggerType,
) (api.RunID, error) {
	doc, ok := e.Workflow()
	if !ok {
		return "", ErrNoWorkflow
	}
	return e.Start(doc, seed, trigger)
}

// Run executes a workflow to completion and returns its final state. A
// structural error fails the run before any node executes and is also
// returned
func (e *Engine) Run(
	ctx context.Context, doc *api.Document, seed any,
	trigger api.TriggerType,
) (*api.RunState, error) {
	r, err := e.prepare(ctx, doc, seed, trigger)
	if err != nil {
		return r.entry.snapshot(), err
	}
	defer r.cancel()
	r.run()
	return r.entry.snapshot(), nil
}

// Start begins an asynchronous run and returns its id. Structural errors
// are returned immediately, with the failed run still recorded
func (e *Engine) Start(
	doc *api.Document, seed any, trigger api.TriggerType,
) (api.RunID, error) {
	if e.ctx.Err() != nil {
		return "", ErrEngineStopped
	}
	r, err := e.prepare(e.ctx, doc, seed, trigger)
	if err != nil {
		return r.state.ID, err
	}
	if !e.launch(r) {
		r.abort(ErrEngineStopped)
		return r.state.ID, ErrEngineStopped
	}
	return r.state.ID, nil
}

// launch starts r in the background unless Stop has begun. The check and
// the WaitGroup add share e.mu with Stop's cancel
func (e *Engine) launch(r *runner) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return false
	}
	e.wg.Go(func() {
		defer r.cancel()
		r.run()
	})
	return true
}

// Cancel stops a run at its next dequeue or pacing point
func (e *Engine) Cancel(id api.RunID) error {
	e.mu.RLock()
	entry, ok := e.runs[id]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	return nil
}

// Wait blocks until the run finishes or ctx is done
func (e *Engine) Wait(ctx context.Context, id api.RunID) (
	*api.RunState, error,
) {
	e.mu.RLock()
	entry, ok := e.runs[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	select {
	case <-entry.done:
		return entry.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetRun returns a copy of a run's current state
func (e *Engine) GetRun(id api.RunID) (*api.RunState, bool) {
	e.mu.RLock()
	entry, ok := e.runs[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.snapshot(), true
}

// ListRuns returns digests of every known run, newest first
func (e *Engine) ListRuns() []*api.RunDigest {
	e.mu.RLock()
	entries := slices.Collect(maps.Values(e.runs))
	e.mu.RUnlock()

	res := make([]*api.RunDigest, 0, len(entries))
	for _, entry := range entries {
		entry.mu.RLock()
		res = append(res, entry.state.Digest())
		entry.mu.RUnlock()
	}
	slices.SortFunc(res, func(l, r *api.RunDigest) int {
		return r.StartedAt.Compare(l.StartedAt)
	})
	return res
}

// Board returns the UI-facing node and edge snapshot
func (e *Engine) Board() *api.BoardResponse {
	return e.board.Snapshot()
}

// Console returns the engine's log trail
func (e *Engine) Console() *Console {
	return e.console
}

// History returns the recorded execution outcomes
func (e *Engine) History(ctx context.Context) ([]*api.ExecutionRecord, error) {
	return e.history.List(ctx)
}

func (e *Engine) prepare(
	ctx context.Context, doc *api.Document, seed any,
	trigger api.TriggerType,
) (*runner, error) {
	id := api.RunID(uuid.NewString())
	runCtx, cancel := context.WithCancel(WithRunID(ctx, id))

	state := &api.RunState{
		ID:        id,
		Status:    api.RunRunning,
		Trigger:   trigger,
		Executed:  map[api.NodeID]any{},
		LoopState: map[api.NodeID]any{},
		Queue:     []api.NodeID{},
		Nodes:     map[api.NodeID]*api.NodeState{},
		Edges:     map[api.EdgeID]*api.EdgeState{},
		StartedAt: e.now(),
	}
	entry := &runEntry{
		state:  state,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.mu.Lock()
	e.runs[id] = entry
	e.mu.Unlock()

	r := &runner{
		engine: e,
		ctx:    runCtx,
		cancel: cancel,
		entry:  entry,
		state:  state,
		seed:   seed,
		loops:  map[api.NodeID]int{},
	}

	g, err := e.buildGraph(doc)
	if err != nil {
		r.abort(err)
		return r, err
	}
	r.graph = g
	return r, nil
}

// retire records a finished run and evicts the oldest finished runs past
// the retention limit. Runs still in flight are never evicted
func (e *Engine) retire(id api.RunID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retired = append(e.retired, id)
	drop := len(e.retired) - e.config.RunRetention
	if e.config.RunRetention <= 0 || drop <= 0 {
		return
	}
	for _, old := range e.retired[:drop] {
		delete(e.runs, old)
	}
	e.retired = slices.Delete(e.retired, 0, drop)
}

func (e *Engine) buildGraph(doc *api.Document) (*graph.Graph, error) {
	if doc == nil {
		return nil, graph.ErrEmptyGraph
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return graph.FromDocument(doc)
}

func (e *Engine) publish(ev *api.Event) {
	if e.hub != nil {
		e.hub.Publish(ev)
	}
}

func (e *Engine) recordHistory(ctx context.Context, st *api.RunState) {
	if e.history == nil {
		return
	}
	rec := &api.ExecutionRecord{
		ID:        "exec_" + uuid.NewString(),
		RunID:     st.ID,
		Timestamp: st.CompletedAt,
		Status:    st.Status,
		Duration:  st.Duration,
		Trigger:   st.Trigger,
	}
	if err := e.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("Failed to record execution",
			log.RunID(st.ID),
			log.Error(err))
	}
}

func (r *runEntry) snapshot() *api.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := *r.state
	res.Executed = maps.Clone(r.state.Executed)
	res.LoopState = maps.Clone(r.state.LoopState)
	res.Queue = slices.Clone(r.state.Queue)
	res.Nodes = make(map[api.NodeID]*api.NodeState, len(r.state.Nodes))
	for id, ns := range r.state.Nodes {
		cp := *ns
		res.Nodes[id] = &cp
	}
	res.Edges = maps.Clone(r.state.Edges)
	return &res
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kimalale/tactical-workflow-manager/internal/graph"
	"github.com/kimalale/tactical-workflow-manager/internal/script"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
	"github.com/kimalale/tactical-workflow-manager/pkg/util"
)

// runner drives one run. Only its goroutine mutates state, and it does so
// under the entry lock so GetRun can take consistent snapshots
type runner struct {
	engine    *Engine
	ctx       context.Context
	cancel    context.CancelFunc
	entry     *runEntry
	state     *api.RunState
	graph     *graph.Graph
	queue     *util.Queue[api.NodeID]
	seed      any
	loops     map[api.NodeID]int
	failed    bool
	cancelled bool
}

func (r *runner) run() {
	defer close(r.entry.done)

	e := r.engine
	e.console.System(r.ctx, "~~~ EXECUTION START ~~~")
	e.publish(&api.Event{
		Type:  api.EventRunStarted,
		RunID: r.state.ID,
		Data:  r.state.Trigger,
	})
	slog.Info("Run started",
		log.RunID(r.state.ID),
		log.Trigger(r.state.Trigger))

	r.queue = util.NewQueue(r.graph.StartNodes()...)
	r.syncQueue()

	for {
		if r.ctx.Err() != nil {
			r.cancelled = true
			break
		}
		id, ok := r.queue.Pop()
		if !ok {
			break
		}
		r.syncQueue()
		node, ok := r.graph.Node(id)
		if !ok {
			continue
		}
		r.execute(node)
	}
	r.finish()
}

func (r *runner) execute(node *api.Node) {
	e := r.engine
	r.setNode(node.ID, func(ns *api.NodeState) {
		ns.Status = api.NodeRunning
		ns.Error = ""
	})
	e.console.System(r.ctx, fmt.Sprintf("▶ Executing %s...", node.ID))
	e.publish(&api.Event{
		Type:   api.EventNodeStarted,
		RunID:  r.state.ID,
		NodeID: node.ID,
	})

	if !r.pace(e.config.NodePacingDuration()) {
		r.interrupt(node)
		return
	}

	out, err := r.step(r.ctx, node, r.input(node.ID))
	if err != nil {
		if r.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			r.interrupt(node)
			return
		}
		r.fail(node, err)
		return
	}

	switch o := out.(type) {
	case Continuing:
		r.continueLoop(node, o)
	case Branched:
		r.branch(node, o)
	case Completed:
		r.complete(node, o.Result)
	}
}

// input returns the seed payload for the first node to execute, otherwise
// the result of the node's first parent
func (r *runner) input(id api.NodeID) any {
	r.entry.mu.RLock()
	defer r.entry.mu.RUnlock()
	if r.seed != nil && len(r.state.Executed) == 0 {
		return r.seed
	}
	if src, ok := r.graph.InputSource(id); ok {
		return r.state.Executed[src]
	}
	return nil
}

func (r *runner) continueLoop(node *api.Node, o Continuing) {
	e := r.engine
	r.loops[node.ID]++
	count := r.loops[node.ID]
	if limit := e.config.LoopMaxIterations; limit > 0 && count > limit {
		r.fail(node, fmt.Errorf("%w: %w: %d", script.ErrScript,
			ErrLoopLimit, limit))
		return
	}

	iteration := loopIteration(o.LoopState, count)
	r.update(func(st *api.RunState) {
		st.LoopState[node.ID] = o.LoopState
	})
	r.setNode(node.ID, func(ns *api.NodeState) {
		ns.Status = api.NodeRunning
		ns.LoopCount = iteration
	})
	e.console.System(r.ctx,
		fmt.Sprintf("↻ %s looping (iteration %d)", node.ID, iteration))
	e.publish(&api.Event{
		Type:   api.EventNodeLooping,
		RunID:  r.state.ID,
		NodeID: node.ID,
		Data:   iteration,
	})

	if !r.pace(e.config.LoopPacingDuration()) {
		r.interrupt(node)
		return
	}
	r.queue.PushFront(node.ID)
	r.syncQueue()
}

func (r *runner) branch(node *api.Node, o Branched) {
	e := r.engine
	r.record(node, o.Result)
	e.console.System(r.ctx, fmt.Sprintf("✓ %s → %s path",
		node.ID, strings.ToUpper(string(o.Handle))))
	e.publish(&api.Event{
		Type:   api.EventNodeBranched,
		RunID:  r.state.ID,
		NodeID: node.ID,
		Data:   o.Handle,
	})

	for _, child := range r.graph.BranchChildren(node.ID, o.Handle) {
		if !r.queue.Contains(child) {
			r.queue.Push(child)
		}
	}
	r.syncQueue()
}

func (r *runner) complete(node *api.Node, result any) {
	e := r.engine
	delete(r.loops, node.ID)
	r.update(func(st *api.RunState) {
		delete(st.LoopState, node.ID)
	})
	r.record(node, result)

	payload := resultString(result)
	e.console.System(r.ctx,
		fmt.Sprintf("▶ ✓ %s completed → %s", node.ID, payload))
	e.publish(&api.Event{
		Type:   api.EventNodeCompleted,
		RunID:  r.state.ID,
		NodeID: node.ID,
		Data:   result,
	})

	for _, edge := range r.graph.Outgoing(node.ID) {
		r.update(func(st *api.RunState) {
			st.Edges[edge.ID] = &api.EdgeState{LastPayload: payload}
		})
		e.board.SetEdgePayload(edge.ID, payload)
	}

	for _, child := range r.graph.PlainChildren(node.ID) {
		if r.ready(child) && !r.queue.Contains(child) {
			r.queue.Push(child)
		}
	}
	r.syncQueue()
}

func (r *runner) fail(node *api.Node, err error) {
	e := r.engine
	r.failed = true
	delete(r.loops, node.ID)
	r.update(func(st *api.RunState) {
		delete(st.LoopState, node.ID)
	})
	r.setNode(node.ID, func(ns *api.NodeState) {
		ns.Status = api.NodeError
		ns.Error = err.Error()
	})
	e.console.Error(r.ctx, node, "▶ ✗ "+err.Error())
	e.console.Error(r.ctx, node, fmt.Sprintf("▶ ✗ %s failed", node.ID))
	e.publish(&api.Event{
		Type:   api.EventNodeFailed,
		RunID:  r.state.ID,
		NodeID: node.ID,
		Data:   err.Error(),
	})
}

// interrupt returns a node to Ready when the run is cancelled under it
func (r *runner) interrupt(node *api.Node) {
	r.setNode(node.ID, func(ns *api.NodeState) {
		ns.Status = api.NodeReady
	})
}

func (r *runner) record(node *api.Node, result any) {
	now := r.engine.now()
	r.update(func(st *api.RunState) {
		st.Executed[node.ID] = result
	})
	r.setNode(node.ID, func(ns *api.NodeState) {
		ns.Status = api.NodeComplete
		ns.LastExecutedAt = now
		ns.LastResult = result
		ns.LoopCount = 0
	})
}

// ready reports whether every parent of id has a result in this run
func (r *runner) ready(id api.NodeID) bool {
	r.entry.mu.RLock()
	defer r.entry.mu.RUnlock()
	for _, p := range r.graph.Parents(id) {
		if _, ok := r.state.Executed[p]; !ok {
			return false
		}
	}
	return true
}

func (r *runner) finish() {
	e := r.engine
	now := e.now()

	status := api.RunSuccess
	switch {
	case r.cancelled:
		status = api.RunCancelled
	case r.failed:
		status = api.RunFailed
	}

	r.update(func(st *api.RunState) {
		st.Status = status
		st.CompletedAt = now
		st.Duration = now.Sub(st.StartedAt).Milliseconds()
	})

	if r.cancelled {
		e.console.System(r.ctx, "▶ EXECUTION CANCELLED")
	} else {
		e.console.System(r.ctx, "▶ EXECUTION COMPLETE")
	}

	st := r.entry.snapshot()
	e.recordHistory(r.ctx, st)
	e.publish(&api.Event{
		Type:  api.EventRunCompleted,
		RunID: st.ID,
		Data:  st.Digest(),
	})
	slog.Info("Run completed",
		log.RunID(st.ID),
		log.Status(string(st.Status)),
		slog.Int64("duration_ms", st.Duration))
	e.retire(st.ID)
}

// abort fails a run that could not start. No history is recorded
func (r *runner) abort(err error) {
	e := r.engine
	now := e.now()
	r.update(func(st *api.RunState) {
		st.Status = api.RunFailed
		st.Error = err.Error()
		st.CompletedAt = now
		st.Duration = now.Sub(st.StartedAt).Milliseconds()
	})
	e.console.Add(r.ctx, api.TagSystem, "▶ ✗ "+err.Error(), api.LogError)
	e.publish(&api.Event{
		Type:  api.EventRunCompleted,
		RunID: r.state.ID,
		Data:  r.state.Digest(),
	})
	close(r.entry.done)
	r.cancel()
	e.retire(r.state.ID)
}

// pace sleeps for d, returning false if the run was cancelled meanwhile
func (r *runner) pace(d time.Duration) bool {
	if d <= 0 {
		return r.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *runner) update(fn func(*api.RunState)) {
	r.entry.mu.Lock()
	defer r.entry.mu.Unlock()
	fn(r.state)
}

func (r *runner) setNode(id api.NodeID, fn func(*api.NodeState)) {
	r.update(func(st *api.RunState) {
		ns, ok := st.Nodes[id]
		if !ok {
			ns = &api.NodeState{Status: api.NodeReady}
			st.Nodes[id] = ns
		}
		fn(ns)
	})
	r.engine.board.UpdateNode(id, fn)
}

func (r *runner) syncQueue() {
	r.update(func(st *api.RunState) {
		st.Queue = r.queue.Values()
	})
}

// loopIteration prefers the script's own iteration counter when its loop
// state carries one
func loopIteration(loop any, count int) int {
	m, ok := loop.(map[string]any)
	if !ok {
		return count
	}
	switch v := m["iteration"].(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return count
	}
}

// resultString renders a result for edge payloads and the console.
// Objects and nil are JSON, scalars are printed as is
func resultString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

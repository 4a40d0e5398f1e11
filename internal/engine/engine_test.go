package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	as "github.com/kimalale/tactical-workflow-manager/internal/assert"
	"github.com/kimalale/tactical-workflow-manager/internal/assert/helpers"
	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/internal/graph"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

const runTimeout = 5 * time.Second

func basic(id api.NodeID, src string) *api.Node {
	return helpers.LuaNode(id, api.KindBasic, src)
}

func run(
	t *testing.T, env *helpers.TestEngineEnv, doc *api.Document, seed any,
) *api.RunState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	st, err := env.Engine.Run(ctx, doc, seed, api.TriggerManual)
	require.NoError(t, err)
	return st
}

func messages(c *engine.Console) []string {
	var res []string
	for _, e := range c.Entries() {
		res = append(res, e.Message)
	}
	return res
}

func TestLinearRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{
			basic("n1", `return { value = 1 }`),
			basic("n2", `return input.value + 1`),
		},
		helpers.Edge("n1", "n2"),
	)
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunSuccess)
	w.Executed(st, "n1", map[string]any{"value": 1})
	w.Executed(st, "n2", 2)
	w.NodeStatus(st, "n1", api.NodeComplete)
	w.NodeStatus(st, "n2", api.NodeComplete)
	w.Equal(`{"value":1}`, st.Edges["n1-n2"].LastPayload)
	w.Empty(st.Queue)
	w.Empty(st.LoopState)

	msgs := messages(env.Console)
	w.Equal("~~~ EXECUTION START ~~~", msgs[0])
	w.Contains(msgs, "▶ Executing n1...")
	w.Contains(msgs, `▶ ✓ n1 completed → {"value":1}`)
	w.Contains(msgs, "▶ ✓ n2 completed → 2")
	w.Equal("▶ EXECUTION COMPLETE", msgs[len(msgs)-1])
}

func TestConditionTakesOneBranch(t *testing.T) {
	tests := []struct {
		name  string
		seed  any
		taken api.NodeID
		other api.NodeID
		path  string
	}{
		{name: "true", seed: 10, taken: "big", other: "small", path: "TRUE"},
		{name: "false", seed: 1, taken: "small", other: "big", path: "FALSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := helpers.NewTestEngine(t)
			w := as.New(t)

			doc := helpers.Document(
				[]*api.Node{
					helpers.LuaNode(
						"check", api.KindCondition, `return input > 5`,
					),
					basic("big", `return "big"`),
					basic("small", `return "small"`),
				},
				helpers.BranchEdge("check", "big", api.HandleTrue),
				helpers.BranchEdge("check", "small", api.HandleFalse),
			)
			st := run(t, env, doc, tt.seed)

			w.RunStatus(st, api.RunSuccess)
			w.Executed(st, tt.taken, string(tt.taken))
			w.NotExecuted(st, tt.other)
			w.NodeStatus(st, tt.other, api.NodeReady)
			w.NodeStatus(st, "check", api.NodeComplete)
			w.Contains(messages(env.Console),
				"✓ check → "+tt.path+" path")
		})
	}
}

func TestLoopContinuesThenCompletes(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{
			helpers.LuaNode("loop", api.KindLoop, `
				loopData.iteration = (loopData.iteration or 0) + 1
				if loopData.iteration < 3 then
					return { continue = true }
				end
				return { continue = false, data = loopData.iteration * 10 }
			`),
			basic("after", `return input + 1`),
		},
		helpers.Edge("loop", "after"),
	)
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunSuccess)
	w.Executed(st, "loop", 30)
	w.Executed(st, "after", 31)
	w.NotContains(st.LoopState, api.NodeID("loop"))
	w.Equal(0, st.Nodes["loop"].LoopCount)

	msgs := messages(env.Console)
	w.Contains(msgs, "↻ loop looping (iteration 1)")
	w.Contains(msgs, "↻ loop looping (iteration 2)")
	w.NotContains(msgs, "↻ loop looping (iteration 3)")
}

func TestLoopDataReplacesState(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{
		helpers.LuaNode("loop", api.KindLoop, `
			local n = (loopData.n or 0) + 1
			if n <= 2 then
				return { continue = true, loopData = { n = n } }
			end
			return { data = n }
		`),
	})
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunSuccess)
	w.Executed(st, "loop", 3)
}

func TestLoopIterationLimit(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.LoopMaxIterations = 3
	env := helpers.NewTestEngineWithConfig(t, cfg)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{
			helpers.LuaNode("spin", api.KindLoop, `return { continue = true }`),
			basic("after", `return 1`),
		},
		helpers.Edge("spin", "after"),
	)
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunFailed)
	w.NodeStatus(st, "spin", api.NodeError)
	w.Contains(st.Nodes["spin"].Error, engine.ErrLoopLimit.Error())
	w.NotExecuted(st, "spin", "after")
	w.NotContains(st.LoopState, api.NodeID("spin"))
	w.Contains(messages(env.Console), "▶ ✗ spin failed")
}

func TestLoopStateClearedOnScriptError(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{
		helpers.LuaNode("spin", api.KindLoop, `
			loopData.i = (loopData.i or 0) + 1
			if loopData.i > 2 then error("gave up") end
			return { continue = true }
		`),
	})
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunFailed)
	w.NodeStatus(st, "spin", api.NodeError)
	w.Contains(st.Nodes["spin"].Error, "gave up")
	w.Empty(st.LoopState)
}

func TestJoinWaitsForAllParents(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{
			basic("a", `return "from-a"`),
			basic("b", `return "from-b"`),
			basic("join", `
				local n = (vars.get("joins") or 0) + 1
				vars.set("joins", n)
				return input
			`),
		},
		helpers.Edge("a", "join"),
		helpers.Edge("b", "join"),
	)
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunSuccess)
	w.Executed(st, "join", "from-a")

	joins, ok, err := env.Vars.Get(context.Background(), "joins")
	w.NoError(err)
	w.True(ok)
	w.EqualValues(1, joins)
}

func TestSeedGoesToFirstNodeOnly(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{
		basic("first", `return input.event`),
		basic("second", `if input == nil then return "none" end`),
	})
	st := run(t, env, doc, map[string]any{"event": "ping"})

	w.Executed(st, "first", "ping")
	w.Executed(st, "second", "none")
}

func TestFailedNodeDoesNotStopRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{
			basic("bad", `error("boom")`),
			basic("child", `return 1`),
			basic("other", `return 2`),
		},
		helpers.Edge("bad", "child"),
	)
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunFailed)
	w.NodeStatus(st, "bad", api.NodeError)
	w.Contains(st.Nodes["bad"].Error, "boom")
	w.NotExecuted(st, "bad", "child")
	w.Executed(st, "other", 2)

	var errs []*api.LogEntry
	for _, e := range env.Console.Entries() {
		if e.Type == api.LogError {
			errs = append(errs, e)
		}
	}
	w.Require.Len(errs, 2)
	w.Equal("bad", errs[0].NodeID)
	w.True(strings.HasPrefix(errs[0].Message, "▶ ✗ "))
	w.Equal("▶ ✗ bad failed", errs[1].Message)
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  *api.Document
		err  error
	}{
		{name: "empty", doc: helpers.Document(nil), err: graph.ErrEmptyGraph},
		{
			name: "dangling",
			doc: helpers.Document(
				[]*api.Node{basic("a", "")}, helpers.Edge("a", "ghost"),
			),
			err: graph.ErrDanglingEdge,
		},
		{
			name: "cycle",
			doc: helpers.Document(
				[]*api.Node{basic("a", ""), basic("b", "")},
				helpers.Edge("a", "b"), helpers.Edge("b", "a"),
			),
			err: graph.ErrNoStartNodes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := helpers.NewTestEngine(t)
			w := as.New(t)

			st, err := env.Engine.Run(
				context.Background(), tt.doc, nil, api.TriggerManual,
			)
			w.ErrorIs(err, tt.err)
			w.RunStatus(st, api.RunFailed)
			w.NotEmpty(st.Error)
			w.Empty(st.Executed)

			recs, err := env.Engine.History(context.Background())
			w.NoError(err)
			w.Empty(recs)
		})
	}
}

func TestHistoryRecorded(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{basic("a", `return 1`)})
	st, err := env.Engine.Run(
		context.Background(), doc, nil, api.TriggerWebhook,
	)
	w.Require.NoError(err)

	recs, err := env.Engine.History(context.Background())
	w.Require.NoError(err)
	w.Require.Len(recs, 1)
	w.True(strings.HasPrefix(recs[0].ID, "exec_"))
	w.Equal(st.ID, recs[0].RunID)
	w.Equal(api.RunSuccess, recs[0].Status)
	w.Equal(api.TriggerWebhook, recs[0].Trigger)
	w.GreaterOrEqual(recs[0].Duration, int64(0))
}

func TestBoardMirrorsRun(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document(
		[]*api.Node{basic("a", `return "x"`), basic("b", `return 1`)},
		helpers.Edge("a", "b"),
	)
	run(t, env, doc, nil)

	board := env.Engine.Board()
	w.Equal(api.NodeComplete, board.Nodes["a"].Status)
	w.Equal("x", board.Nodes["a"].LastResult)
	w.Equal("x", board.Edges["a-b"].LastPayload)
}

func TestDatabaseFromScript(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	_, err := env.Registry.Add(&api.DatabaseConnection{
		Name: "main",
		Type: api.DatabaseMongo,
	})
	w.Require.NoError(err)
	env.Registry.Wait()
	env.Gateway.SetResult(api.OpFind, []any{
		map[string]any{"name": "ada"},
	})

	doc := helpers.Document([]*api.Node{
		helpers.LuaNode("users", api.KindDatabase, `
			local rows = db.find("main", "users", { active = true })
			return rows[1].name
		`),
	})
	st := run(t, env, doc, nil)

	w.RunStatus(st, api.RunSuccess)
	w.Executed(st, "users", "ada")
	reqs := env.Gateway.Requests()
	w.Require.Len(reqs, 1)
	w.Equal(api.OpFind, reqs[0].Operation)
	w.Equal("users", reqs[0].Options["collection"])
}

func TestStartAndWait(t *testing.T) {
	env := helpers.NewTestEngine(t)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{basic("a", `return 7`)})
	id, err := env.Engine.Start(doc, nil, api.TriggerManual)
	w.Require.NoError(err)

	st := w.RunTerminal(env.Engine, id, runTimeout)
	w.Require.NotNil(st)
	w.Executed(st, "a", 7)

	digests := env.Engine.ListRuns()
	w.Require.Len(digests, 1)
	w.Equal(id, digests[0].ID)
}

func TestFinishedRunsAreEvicted(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.RunRetention = 3
	env := helpers.NewTestEngineWithConfig(t, cfg)
	w := as.New(t)

	doc := helpers.Document([]*api.Node{basic("a", `return 1`)})
	var ids []api.RunID
	for range 5 {
		ids = append(ids, run(t, env, doc, nil).ID)
	}

	w.Len(env.Engine.ListRuns(), 3)
	for _, id := range ids[:2] {
		_, ok := env.Engine.GetRun(id)
		w.False(ok)
	}
	for _, id := range ids[2:] {
		st, ok := env.Engine.GetRun(id)
		w.Require.True(ok)
		w.RunStatus(st, api.RunSuccess)
	}

	h, err := env.Engine.History(context.Background())
	w.NoError(err)
	w.Len(h, 5)
}

func TestStructuralFailuresAreEvicted(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.RunRetention = 1
	env := helpers.NewTestEngineWithConfig(t, cfg)

	for range 3 {
		_, err := env.Engine.Start(
			helpers.Document(nil), nil, api.TriggerManual,
		)
		assert.ErrorIs(t, err, graph.ErrEmptyGraph)
	}
	assert.Len(t, env.Engine.ListRuns(), 1)
}

func TestStartAfterStop(t *testing.T) {
	env := helpers.NewTestEngine(t)

	require.NoError(t, env.Engine.Stop())
	doc := helpers.Document([]*api.Node{basic("a", `return 1`)})
	_, err := env.Engine.Start(doc, nil, api.TriggerManual)
	assert.ErrorIs(t, err, engine.ErrEngineStopped)
}

func TestStartCurrentRequiresWorkflow(t *testing.T) {
	env := helpers.NewTestEngine(t)

	_, err := env.Engine.StartCurrent(nil, api.TriggerSchedule)
	assert.ErrorIs(t, err, engine.ErrNoWorkflow)

	doc := helpers.Document([]*api.Node{basic("a", `return 1`)})
	require.NoError(t, env.Engine.SetWorkflow(doc))

	id, err := env.Engine.StartCurrent(nil, api.TriggerSchedule)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	st, err := env.Engine.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.TriggerSchedule, st.Trigger)
	assert.Equal(t, api.RunSuccess, st.Status)
}

func TestCancelRun(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.NodePacing = 100
	env := helpers.NewTestEngineWithConfig(t, cfg)
	w := as.New(t)

	nodes := []*api.Node{}
	var edges []*api.Edge
	for i := range 20 {
		id := api.NodeID("n" + string(rune('a'+i)))
		nodes = append(nodes, basic(id, `return 1`))
		if i > 0 {
			edges = append(edges, helpers.Edge(nodes[i-1].ID, id))
		}
	}
	id, err := env.Engine.Start(
		helpers.Document(nodes, edges...), nil, api.TriggerManual,
	)
	w.Require.NoError(err)

	time.Sleep(150 * time.Millisecond)
	w.NoError(env.Engine.Cancel(id))

	st := w.RunTerminal(env.Engine, id, runTimeout)
	w.Require.NotNil(st)
	w.RunStatus(st, api.RunCancelled)
	w.NotExecuted(st, "nt")
	w.Contains(messages(env.Console), "▶ EXECUTION CANCELLED")

	err = env.Engine.Cancel("missing")
	w.ErrorIs(err, engine.ErrRunNotFound)
}

func TestNodePacing(t *testing.T) {
	cfg := helpers.NewTestConfig()
	cfg.NodePacing = 30
	env := helpers.NewTestEngineWithConfig(t, cfg)

	doc := helpers.Document(
		[]*api.Node{basic("a", `return 1`), basic("b", `return 2`)},
		helpers.Edge("a", "b"),
	)
	start := time.Now()
	run(t, env, doc, nil)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

package api_test

import (
	"testing"
	"time"

	"github.com/kimalale/tactical-workflow-manager/internal/assert"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

func TestRunStatusTerminal(t *testing.T) {
	as := assert.New(t)
	as.False(api.RunRunning.IsTerminal())
	as.True(api.RunSuccess.IsTerminal())
	as.True(api.RunFailed.IsTerminal())
	as.True(api.RunCancelled.IsTerminal())
}

func TestRunStateDigest(t *testing.T) {
	as := assert.New(t)

	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	st := &api.RunState{
		ID:          "run-1",
		Status:      api.RunSuccess,
		Trigger:     api.TriggerSchedule,
		Executed:    map[api.NodeID]any{"a": 1},
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
		Duration:    1000,
	}
	as.Equal(&api.RunDigest{
		ID:          "run-1",
		Status:      api.RunSuccess,
		Trigger:     api.TriggerSchedule,
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
		Duration:    1000,
	}, st.Digest())
}

func TestNodeStatusOf(t *testing.T) {
	as := assert.New(t)

	st := &api.RunState{
		Nodes: map[api.NodeID]*api.NodeState{
			"a": {Status: api.NodeComplete},
		},
	}
	as.Equal(api.NodeComplete, st.NodeStatusOf("a"))
	as.Equal(api.NodeReady, st.NodeStatusOf("b"))
}

func TestScheduleInterval(t *testing.T) {
	as := assert.New(t)
	sc := &api.Schedule{IntervalSeconds: 90}
	as.Equal(90*time.Second, sc.Interval())
}

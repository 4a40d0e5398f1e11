package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kimalale/tactical-workflow-manager/internal/config"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// RunGetter retrieves run state by id
	RunGetter interface {
		GetRun(id api.RunID) (*api.RunState, bool)
	}

	// Wrapper wraps testify assertions with workflow-specific helpers
	Wrapper struct {
		*testing.T
		*assert.Assertions
		Require *assert.Assertions
	}
)

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus workflow-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// RunStatus asserts the status of a run
func (w *Wrapper) RunStatus(run *api.RunState, expected api.RunStatus) {
	w.Helper()
	w.Equal(expected, run.Status)
}

// NodeStatus asserts the status a run recorded for a node
func (w *Wrapper) NodeStatus(
	run *api.RunState, id api.NodeID, expected api.NodeStatus,
) {
	w.Helper()
	w.Equal(expected, run.NodeStatusOf(id), "node %s", id)
}

// Executed asserts that a node completed with the expected result
func (w *Wrapper) Executed(run *api.RunState, id api.NodeID, expected any) {
	w.Helper()
	res, ok := run.Executed[id]
	w.True(ok, "node %s should have executed", id)
	w.Equal(expected, res, "node %s result", id)
}

// NotExecuted asserts that a node never produced a result
func (w *Wrapper) NotExecuted(run *api.RunState, ids ...api.NodeID) {
	w.Helper()
	for _, id := range ids {
		_, ok := run.Executed[id]
		w.False(ok, "node %s should not have executed", id)
	}
}

// RunTerminal waits for a run to reach a terminal status and returns it
func (w *Wrapper) RunTerminal(
	get RunGetter, id api.RunID, timeout time.Duration,
) *api.RunState {
	w.Helper()
	var res *api.RunState
	w.Eventually(func() bool {
		run, ok := get.GetRun(id)
		if ok && run.Status.IsTerminal() {
			res = run
			return true
		}
		return false
	}, timeout, "run %s did not finish", id)
	return res
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= 65535)
	w.True(cfg.GatewayTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

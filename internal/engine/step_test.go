package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0, false},
		{int64(0), false},
		{0.0, false},
		{math.NaN(), false},
		{-1, true},
		{0.5, true},
		{"", false},
		{"false", true},
		{map[string]any{}, true},
		{[]any{}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.value), "%#v", tt.value)
	}
}

func TestLoopStep(t *testing.T) {
	loop := map[string]any{"i": 2}

	out := loopStep(map[string]any{"continue": true}, loop)
	assert.Equal(t, Continuing{LoopState: loop}, out)

	next := map[string]any{"i": 3}
	out = loopStep(map[string]any{
		"continue": true, "loopData": next,
	}, loop)
	assert.Equal(t, Continuing{LoopState: next}, out)

	out = loopStep(map[string]any{
		"continue": true, "loopData": false,
	}, loop)
	assert.Equal(t, Continuing{LoopState: loop}, out)

	out = loopStep(map[string]any{"continue": false, "data": "done"}, loop)
	assert.Equal(t, Completed{Result: "done"}, out)

	out = loopStep(map[string]any{}, loop)
	assert.Equal(t, Completed{Result: nil}, out)

	out = loopStep("plain", loop)
	assert.Equal(t, Completed{Result: "plain"}, out)
}

func TestConditionStep(t *testing.T) {
	assert.Equal(t,
		Branched{Handle: api.HandleTrue, Result: 1}, conditionStep(1, nil),
	)
	assert.Equal(t,
		Branched{Handle: api.HandleFalse, Result: nil},
		conditionStep(nil, nil),
	)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "null", resultString(nil))
	assert.Equal(t, "text", resultString("text"))
	assert.Equal(t, "42", resultString(42))
	assert.Equal(t, "1.5", resultString(1.5))
	assert.Equal(t, "true", resultString(true))
	assert.Equal(t, `{"a":[1,2]}`, resultString(map[string]any{
		"a": []any{1, 2},
	}))
}

func TestLoopIteration(t *testing.T) {
	assert.Equal(t, 4, loopIteration(map[string]any{"iteration": 4}, 1))
	assert.Equal(t, 2, loopIteration(map[string]any{"iteration": 2.0}, 1))
	assert.Equal(t, 7, loopIteration(map[string]any{"n": 1}, 7))
	assert.Equal(t, 3, loopIteration(nil, 3))
}

package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kimalale/tactical-workflow-manager/pkg/util"
)

func TestQueueFIFO(t *testing.T) {
	q := util.NewQueue("a", "b")
	assert.True(t, q.Push("c"))
	assert.Equal(t, []string{"a", "b", "c"}, q.Values())

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, q.Len())
}

func TestQueueIdempotentPush(t *testing.T) {
	q := util.NewQueue("a", "a", "b")
	assert.Equal(t, []string{"a", "b"}, q.Values())
	assert.False(t, q.Push("b"))
	assert.False(t, q.PushFront("a"))

	_, _ = q.Pop()
	assert.False(t, q.Contains("a"))
	assert.True(t, q.Push("a"))
	assert.Equal(t, []string{"b", "a"}, q.Values())
}

func TestQueuePushFront(t *testing.T) {
	q := util.NewQueue("x")
	assert.True(t, q.PushFront("loop"))
	v, _ := q.Pop()
	assert.Equal(t, "loop", v)
}

func TestQueueEmptyPop(t *testing.T) {
	q := util.NewQueue[int]()
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestSet(t *testing.T) {
	s := util.SetOf(1, 2)
	assert.True(t, s.Add(3))
	assert.False(t, s.Add(3))
	assert.True(t, s.Remove(1))
	assert.False(t, s.Remove(1))
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(1))
	assert.Equal(t, 2, s.Len())
	assert.ElementsMatch(t, []int{2, 3}, s.Values())
}

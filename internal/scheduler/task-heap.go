package scheduler

import (
	"container/heap"
	"time"

	"github.com/kimalale/tactical-workflow-manager/pkg/util"
)

type (
	// Task is a function due at At. A positive Every re-arms it after each
	// firing. Tasks with a Path are keyed: inserting another task at the
	// same path replaces it
	Task struct {
		Func  TaskFunc
		At    time.Time
		Every time.Duration
		Path  taskPath
		index int
	}

	// TaskHeap is a min-heap of tasks by due time with a path index for
	// keyed replacement and prefix cancellation
	TaskHeap struct {
		items []*Task
		keyed *util.PathTree[*Task]
	}

	taskPath []string
)

// NewTaskHeap returns an empty heap
func NewTaskHeap() *TaskHeap {
	return &TaskHeap{keyed: util.NewPathTree[*Task]()}
}

// Insert schedules t. Tasks without a function or due time are ignored
func (h *TaskHeap) Insert(t *Task) {
	if t == nil || t.Func == nil || t.At.IsZero() {
		return
	}
	if old, ok := h.lookup(t.Path); ok {
		old.Func, old.At, old.Every = t.Func, t.At, t.Every
		heap.Fix(h, old.index)
		return
	}
	heap.Push(h, t)
}

// PopTask removes the earliest task, or returns nil when empty
func (h *TaskHeap) PopTask() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}

// Peek returns the earliest task without removing it
func (h *TaskHeap) Peek() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// Cancel drops the task keyed at exactly path
func (h *TaskHeap) Cancel(path []string) {
	if t, ok := h.lookup(path); ok {
		heap.Remove(h, t.index)
	}
}

// CancelPrefix drops every keyed task at or below prefix
func (h *TaskHeap) CancelPrefix(prefix []string) {
	if len(prefix) == 0 {
		return
	}
	for _, t := range h.keyed.Detach(prefix) {
		heap.Remove(h, t.index)
	}
}

// CountPrefix returns the number of keyed tasks at or below prefix
func (h *TaskHeap) CountPrefix(prefix []string) int {
	return h.keyed.Count(prefix)
}

func (h *TaskHeap) lookup(path []string) (*Task, bool) {
	if len(path) == 0 {
		return nil, false
	}
	return h.keyed.Get(path)
}

// heap.Interface

func (h *TaskHeap) Len() int { return len(h.items) }

func (h *TaskHeap) Less(i, j int) bool {
	return h.items[i].At.Before(h.items[j].At)
}

func (h *TaskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *TaskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(h.items)
	h.items = append(h.items, t)
	if len(t.Path) > 0 {
		h.keyed.Insert(t.Path, t)
	}
}

func (h *TaskHeap) Pop() any {
	last := len(h.items) - 1
	t := h.items[last]
	h.items[last] = nil
	h.items = h.items[:last]
	t.index = -1
	if len(t.Path) > 0 {
		h.keyed.Remove(t.Path)
	}
	return t
}

// rearm moves a fired repeating task to its next due time
func (t *Task) rearm(now time.Time) *Task {
	t.At = now.Add(t.Every)
	return t
}

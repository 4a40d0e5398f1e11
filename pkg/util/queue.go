package util

// Queue is a FIFO of unique values. Pushing a value that is already queued
// is a no-op, and values may be re-inserted at the front
type Queue[K comparable] struct {
	items  []K
	queued Set[K]
}

// NewQueue creates a queue seeded with the given values, in order
func NewQueue[K comparable](values ...K) *Queue[K] {
	q := &Queue[K]{queued: Set[K]{}}
	for _, v := range values {
		q.Push(v)
	}
	return q
}

// Push appends a value to the back of the queue. Returns false if the value
// was already queued
func (q *Queue[K]) Push(v K) bool {
	if !q.queued.Add(v) {
		return false
	}
	q.items = append(q.items, v)
	return true
}

// PushFront inserts a value at the front of the queue. Returns false if the
// value was already queued
func (q *Queue[K]) PushFront(v K) bool {
	if !q.queued.Add(v) {
		return false
	}
	q.items = append([]K{v}, q.items...)
	return true
}

// Pop removes and returns the value at the front of the queue
func (q *Queue[K]) Pop() (K, bool) {
	var zero K
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.queued.Remove(v)
	return v, true
}

// Contains reports whether a value is currently queued
func (q *Queue[K]) Contains(v K) bool {
	return q.queued.Contains(v)
}

// Len returns the number of queued values
func (q *Queue[K]) Len() int {
	return len(q.items)
}

// Values returns a copy of the queued values in order
func (q *Queue[K]) Values() []K {
	res := make([]K, len(q.items))
	copy(res, q.items)
	return res
}

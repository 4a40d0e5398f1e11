package util

type (
	// PathTree maps string paths to values and can drop whole subtrees by
	// prefix
	PathTree[T any] struct {
		root *pathNode[T]
	}

	pathNode[T any] struct {
		val  T
		set  bool
		kids map[string]*pathNode[T]
	}
)

// NewPathTree returns an empty tree
func NewPathTree[T any]() *PathTree[T] {
	return &PathTree[T]{root: &pathNode[T]{}}
}

// Insert stores v at path, replacing any value already there
func (t *PathTree[T]) Insert(path []string, v T) {
	n := t.root
	for _, seg := range path {
		if n.kids == nil {
			n.kids = map[string]*pathNode[T]{}
		}
		next, ok := n.kids[seg]
		if !ok {
			next = &pathNode[T]{}
			n.kids[seg] = next
		}
		n = next
	}
	n.val, n.set = v, true
}

// Get returns the value stored at exactly path
func (t *PathTree[T]) Get(path []string) (T, bool) {
	if n := t.find(path); n != nil && n.set {
		return n.val, true
	}
	var zero T
	return zero, false
}

// Remove clears the value at path and prunes branches left empty
func (t *PathTree[T]) Remove(path []string) {
	t.root.clear(path)
}

// Detach cuts the subtree at prefix out of the tree and returns its values.
// An empty prefix empties the whole tree
func (t *PathTree[T]) Detach(prefix []string) []T {
	var cut *pathNode[T]
	if len(prefix) == 0 {
		cut, t.root = t.root, &pathNode[T]{}
	} else if parent := t.find(prefix[:len(prefix)-1]); parent != nil {
		last := prefix[len(prefix)-1]
		cut = parent.kids[last]
		delete(parent.kids, last)
	}

	var res []T
	cut.collect(&res)
	return res
}

// Count returns how many values are stored at or below prefix
func (t *PathTree[T]) Count(prefix []string) int {
	var res []T
	t.find(prefix).collect(&res)
	return len(res)
}

func (t *PathTree[T]) find(path []string) *pathNode[T] {
	n := t.root
	for _, seg := range path {
		if n = n.kids[seg]; n == nil {
			return nil
		}
	}
	return n
}

// clear reports whether n is left with neither a value nor children
func (n *pathNode[T]) clear(path []string) bool {
	if len(path) == 0 {
		var zero T
		n.val, n.set = zero, false
	} else if next := n.kids[path[0]]; next != nil && next.clear(path[1:]) {
		delete(n.kids, path[0])
	}
	return !n.set && len(n.kids) == 0
}

func (n *pathNode[T]) collect(res *[]T) {
	if n == nil {
		return
	}
	if n.set {
		*res = append(*res, n.val)
	}
	for _, kid := range n.kids {
		kid.collect(res)
	}
}

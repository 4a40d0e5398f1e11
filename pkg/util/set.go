package util

import (
	"maps"
	"slices"
)

// Set holds distinct comparable values
type Set[K comparable] map[K]struct{}

// SetOf returns a set holding vals
func SetOf[K comparable](vals ...K) Set[K] {
	res := make(Set[K], len(vals))
	for _, v := range vals {
		res[v] = struct{}{}
	}
	return res
}

// Add inserts v, reporting whether it was absent
func (s Set[K]) Add(v K) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Remove deletes v, reporting whether it was present
func (s Set[K]) Remove(v K) bool {
	if _, ok := s[v]; !ok {
		return false
	}
	delete(s, v)
	return true
}

func (s Set[K]) Contains(v K) bool {
	_, ok := s[v]
	return ok
}

func (s Set[K]) Len() int {
	return len(s)
}

// Values returns the members in no particular order
func (s Set[K]) Values() []K {
	return slices.Collect(maps.Keys(s))
}

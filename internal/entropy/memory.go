package entropy

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory remembers the last entropy score observed per path.
//
// With a positive capacity it is an LRU cache and the least recently
// observed path is forgotten first. A forgotten path reads back as 0, the
// same as a path never seen. Capacity 0 keeps every path forever.
//
// Memory is not safe for concurrent use.
type Memory struct {
	cache     *lru.Cache[string, float64]
	unbounded map[string]float64
}

// NewMemory returns a Memory holding at most capacity paths, or an unbounded
// one when capacity is 0.
func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return &Memory{unbounded: make(map[string]float64)}, nil
	}
	cache, err := lru.New[string, float64](capacity)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: cache}, nil
}

// Previous returns the last score stored for path, or 0 if none.
func (m *Memory) Previous(path string) float64 {
	if m.cache != nil {
		v, _ := m.cache.Peek(path)
		return v
	}
	return m.unbounded[path]
}

// Observe stores score for path and returns the score it replaces.
func (m *Memory) Observe(path string, score float64) float64 {
	prev := m.Previous(path)
	if m.cache != nil {
		m.cache.Add(path, score)
	} else {
		m.unbounded[path] = score
	}
	return prev
}

// Len returns the number of remembered paths.
func (m *Memory) Len() int {
	if m.cache != nil {
		return m.cache.Len()
	}
	return len(m.unbounded)
}

package evaluator

import "sync"

// memo is a bounded FIFO cache of results keyed by chromosome.
// A nil *memo caches nothing.
type memo struct {
	mu      sync.Mutex
	size    int
	entries map[string]Result
	order   []string
}

func newMemo(size int) *memo {
	if size <= 0 {
		return nil
	}
	return &memo{size: size, entries: make(map[string]Result, size)}
}

func (m *memo) get(key string) (Result, bool) {
	if m == nil {
		return Result{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok
}

func (m *memo) put(key string, r Result) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return
	}
	if len(m.order) >= m.size {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
	m.entries[key] = r
	m.order = append(m.order, key)
}

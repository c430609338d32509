package app

import "sync"

// exclusion is a per-source token set. A source held by one cycle is
// skipped by any overlapping run instead of being fetched twice.
type exclusion struct {
	mu   sync.Mutex
	held map[int64]bool
}

func (e *exclusion) TryAcquire(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held == nil {
		e.held = make(map[int64]bool)
	}
	if e.held[id] {
		return false
	}
	e.held[id] = true
	return true
}

func (e *exclusion) Release(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.held, id)
}

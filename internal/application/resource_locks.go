package application

import "sync"

// resourceLockTable serializes commit transactions that want the same
// vehicle or driver. Locks are always acquired in ascending resource-id
// order, so two commits contending for an overlapping pair can never
// deadlock.
type resourceLockTable struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newResourceLockTable() *resourceLockTable {
	return &resourceLockTable{locks: make(map[int64]*sync.Mutex)}
}

func (t *resourceLockTable) get(id int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[id]
	if !ok {
		m = &sync.Mutex{}
		t.locks[id] = m
	}
	return m
}

// lockPair locks both resources in ascending id order and returns the
// matching unlock function (reverse order).
func (t *resourceLockTable) lockPair(a, b int64) func() {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	fm := t.get(first)
	sm := t.get(second)
	fm.Lock()
	sm.Lock()
	return func() {
		sm.Unlock()
		fm.Unlock()
	}
}

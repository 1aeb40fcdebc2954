package field

import "sync"

type logOp uint8

const (
	opInsert logOp = iota
	opRemove
)

type logEntry[K comparable, V any] struct {
	op    logOp
	key   K
	value V
}

// DBMap is a double-buffered key/value map. Get only consults the read view
// produced by the last Commit; Insert and Remove append to a write log that
// Commit applies in append order, so the last logged write for a key wins.
//
// Get may be called concurrently without synchronisation. Insert and Remove
// may be called concurrently with each other and with Get. Commit must run
// alone.
type DBMap[K comparable, V any] struct {
	read Store[K, V]

	mu  sync.Mutex
	log []logEntry[K, V]
}

// NewDBMap creates a hash-backed DBMap.
func NewDBMap[K comparable, V any]() *DBMap[K, V] {
	return NewDBMapWithStore[K, V](NewMapStore[K, V]())
}

// NewDBMapWithStore creates a DBMap whose read view lives in store.
func NewDBMapWithStore[K comparable, V any](store Store[K, V]) *DBMap[K, V] {
	return &DBMap[K, V]{read: store}
}

// Get returns the committed value for k.
func (m *DBMap[K, V]) Get(k K) (V, bool) {
	return m.read.Get(k)
}

// Contains reports whether k is present in the read view.
func (m *DBMap[K, V]) Contains(k K) bool {
	_, ok := m.read.Get(k)
	return ok
}

// Len returns the number of committed entries.
func (m *DBMap[K, V]) Len() int {
	return m.read.Len()
}

// Range visits the committed entries. Iteration order depends on the store.
func (m *DBMap[K, V]) Range(fn func(k K, v V) bool) {
	m.read.Range(fn)
}

// Insert stages k=v.
func (m *DBMap[K, V]) Insert(k K, v V) {
	m.mu.Lock()
	m.log = append(m.log, logEntry[K, V]{op: opInsert, key: k, value: v})
	m.mu.Unlock()
}

// Remove stages the deletion of k.
func (m *DBMap[K, V]) Remove(k K) {
	m.mu.Lock()
	m.log = append(m.log, logEntry[K, V]{op: opRemove, key: k})
	m.mu.Unlock()
}

// Pending returns the number of staged writes.
func (m *DBMap[K, V]) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

// Commit applies the write log to the read view and clears it.
func (m *DBMap[K, V]) Commit() {
	m.applyAll(m.drain())
}

// drain takes ownership of the write log.
func (m *DBMap[K, V]) drain() []logEntry[K, V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.log
	m.log = nil
	return entries
}

func (m *DBMap[K, V]) applyAll(entries []logEntry[K, V]) {
	for _, e := range entries {
		switch e.op {
		case opInsert:
			m.read.Set(e.key, e.value)
		case opRemove:
			m.read.Delete(e.key)
		}
	}
}

package field

import "fmt"

// Store is the backing storage of a DBMap's read view.
type Store[K comparable, V any] interface {
	Get(k K) (V, bool)
	Set(k K, v V)
	Delete(k K)
	Len() int
	Range(fn func(k K, v V) bool)
}

// MapStore is hash-backed storage sized to occupancy.
type MapStore[K comparable, V any] struct {
	m map[K]V
}

// NewMapStore creates an empty MapStore.
func NewMapStore[K comparable, V any]() *MapStore[K, V] {
	return &MapStore[K, V]{m: make(map[K]V)}
}

func (s *MapStore[K, V]) Get(k K) (V, bool) {
	v, ok := s.m[k]
	return v, ok
}

func (s *MapStore[K, V]) Set(k K, v V) { s.m[k] = v }
func (s *MapStore[K, V]) Delete(k K)   { delete(s.m, k) }
func (s *MapStore[K, V]) Len() int     { return len(s.m) }

// Range visits entries in unspecified order.
func (s *MapStore[K, V]) Range(fn func(k K, v V) bool) {
	for k, v := range s.m {
		if !fn(k, v) {
			return
		}
	}
}

// DenseStore is a pre-allocated width×height array indexed by the
// linearised coordinate y*width+x. Access is O(1) and memory is bounded by
// the grid area regardless of occupancy.
type DenseStore[V any] struct {
	width, height int
	cells         []V
	used          []bool
	n             int
}

// NewDenseStore allocates a w×h store. It panics on non-positive dimensions.
func NewDenseStore[V any](w, h int) *DenseStore[V] {
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("field: dense store needs positive dimensions, got %dx%d", w, h))
	}
	return &DenseStore[V]{
		width:  w,
		height: h,
		cells:  make([]V, w*h),
		used:   make([]bool, w*h),
	}
}

func (s *DenseStore[V]) index(c Int2D) (int, bool) {
	if !c.InBounds(s.width, s.height) {
		return 0, false
	}
	return c.Y*s.width + c.X, true
}

func (s *DenseStore[V]) Get(c Int2D) (V, bool) {
	i, ok := s.index(c)
	if !ok || !s.used[i] {
		var zero V
		return zero, false
	}
	return s.cells[i], true
}

// Set panics when c is out of bounds; callers validate coordinates when
// the write is staged.
func (s *DenseStore[V]) Set(c Int2D, v V) {
	i, ok := s.index(c)
	if !ok {
		panic(fmt.Sprintf("field: %v outside dense store %dx%d", c, s.width, s.height))
	}
	if !s.used[i] {
		s.used[i] = true
		s.n++
	}
	s.cells[i] = v
}

func (s *DenseStore[V]) Delete(c Int2D) {
	i, ok := s.index(c)
	if !ok || !s.used[i] {
		return
	}
	var zero V
	s.cells[i] = zero
	s.used[i] = false
	s.n--
}

func (s *DenseStore[V]) Len() int { return s.n }

// Range visits occupied cells in row-major order.
func (s *DenseStore[V]) Range(fn func(c Int2D, v V) bool) {
	for i, used := range s.used {
		if !used {
			continue
		}
		if !fn(Int2D{X: i % s.width, Y: i / s.width}, s.cells[i]) {
			return
		}
	}
}

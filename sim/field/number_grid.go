package field

import "fmt"

// NumberGrid2D is a double-buffered scalar field over integer cells. It is
// used for quantities such as temperature, pheromone or resource levels.
type NumberGrid2D[V any] struct {
	width, height int
	bounded       bool
	values        *DBMap[Int2D, V]
}

// NewSparseNumberGrid2D creates a hash-backed field. Non-positive
// dimensions make it unbounded.
func NewSparseNumberGrid2D[V any](width, height int) *NumberGrid2D[V] {
	return &NumberGrid2D[V]{
		width:   width,
		height:  height,
		bounded: width > 0 && height > 0,
		values:  NewDBMap[Int2D, V](),
	}
}

// NewDenseNumberGrid2D creates an array-backed field. It panics on
// non-positive dimensions.
func NewDenseNumberGrid2D[V any](width, height int) *NumberGrid2D[V] {
	return &NumberGrid2D[V]{
		width:   width,
		height:  height,
		bounded: true,
		values:  NewDBMapWithStore[Int2D, V](NewDenseStore[V](width, height)),
	}
}

func (g *NumberGrid2D[V]) Width() int  { return g.width }
func (g *NumberGrid2D[V]) Height() int { return g.height }
func (g *NumberGrid2D[V]) Len() int    { return g.values.Len() }

// Get returns the committed value at c.
func (g *NumberGrid2D[V]) Get(c Int2D) (V, bool) {
	return g.values.Get(c)
}

// GetOr returns the committed value at c, or def when the cell is unset.
func (g *NumberGrid2D[V]) GetOr(c Int2D, def V) V {
	if v, ok := g.values.Get(c); ok {
		return v
	}
	return def
}

// Set stages c=v.
func (g *NumberGrid2D[V]) Set(c Int2D, v V) error {
	if g.bounded && !c.InBounds(g.width, g.height) {
		return fmt.Errorf("setting %v on %dx%d field: %w", c, g.width, g.height, ErrOutOfBounds)
	}
	g.values.Insert(c, v)
	return nil
}

// Remove stages clearing c.
func (g *NumberGrid2D[V]) Remove(c Int2D) {
	g.values.Remove(c)
}

// Commit publishes staged writes.
func (g *NumberGrid2D[V]) Commit() {
	g.values.Commit()
}

// Range visits committed cells. Dense fields iterate in row-major order.
func (g *NumberGrid2D[V]) Range(fn func(c Int2D, v V) bool) {
	g.values.Range(fn)
}

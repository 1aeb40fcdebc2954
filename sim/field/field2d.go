package field

import (
	"fmt"
	"math"
	"slices"

	"github.com/abm-sim/abm-sim/sim"
)

// Field2D places agents at continuous positions in a width×height space.
// Positions are bucketed into square cells of side discretization so that
// neighbourhood queries only scan nearby cells.
type Field2D struct {
	width, height  float64
	discretization float64
	toroidal       bool
	cellsX, cellsY int

	positions *DBMap[sim.AgentID, Real2D]
	cells     *DBMap[Int2D, []sim.AgentID]
}

// NewField2D creates a continuous space. It panics on non-positive sizes.
func NewField2D(width, height, discretization float64, toroidal bool) *Field2D {
	if !(width > 0 && height > 0 && discretization > 0) {
		panic(fmt.Sprintf("field: continuous space needs positive sizes, got %gx%g / %g", width, height, discretization))
	}
	return &Field2D{
		width:          width,
		height:         height,
		discretization: discretization,
		toroidal:       toroidal,
		cellsX:         int(math.Ceil(width / discretization)),
		cellsY:         int(math.Ceil(height / discretization)),
		positions:      NewDBMap[sim.AgentID, Real2D](),
		cells:          NewDBMap[Int2D, []sim.AgentID](),
	}
}

func (f *Field2D) Width() float64  { return f.width }
func (f *Field2D) Height() float64 { return f.height }
func (f *Field2D) Toroidal() bool  { return f.toroidal }
func (f *Field2D) Len() int        { return f.positions.Len() }

// LocationOf returns the committed position of agent a.
func (f *Field2D) LocationOf(a sim.AgentID) (Real2D, bool) {
	return f.positions.Get(a)
}

// SetLocation stages moving agent a to p. Toroidal spaces wrap p; bounded
// ones reject positions outside [0,width)×[0,height).
func (f *Field2D) SetLocation(a sim.AgentID, p Real2D) error {
	if f.toroidal {
		p = f.Wrap(p)
	} else if p.X < 0 || p.X >= f.width || p.Y < 0 || p.Y >= f.height {
		return fmt.Errorf("placing agent %d at %v in %gx%g space: %w", a, p, f.width, f.height, ErrOutOfBounds)
	}
	f.positions.Insert(a, p)
	return nil
}

// RemoveAgent stages removing agent a.
func (f *Field2D) RemoveAgent(a sim.AgentID) {
	f.positions.Remove(a)
}

// Wrap maps p onto the torus. The result lies in [0,width)×[0,height).
func (f *Field2D) Wrap(p Real2D) Real2D {
	return Real2D{X: wrapCoord(p.X, f.width), Y: wrapCoord(p.Y, f.height)}
}

// wrapCoord folds v into [0,size). Tiny negative inputs round up to size
// under float addition, so that case is folded to 0.
func wrapCoord(v, size float64) float64 {
	m := math.Mod(v, size)
	if m < 0 {
		m += size
	}
	if m >= size {
		m = 0
	}
	return m
}

// Distance measures p to q with the space's metric.
func (f *Field2D) Distance(p, q Real2D) float64 {
	if f.toroidal {
		return ToroidalDistance(p, q, f.width, f.height)
	}
	return p.Distance(q)
}

func (f *Field2D) cellOf(p Real2D) Int2D {
	return Int2D{X: f.index(p.X, f.cellsX), Y: f.index(p.Y, f.cellsY)}
}

// index is the cell of coordinate v on an axis of n cells, clamped so that
// the partial last cell absorbs v == size.
func (f *Field2D) index(v float64, n int) int {
	return min(max(int(math.Floor(v/f.discretization)), 0), n-1)
}

// spans returns the cell ranges covering [c-d, c+d] on one axis. On a torus
// the interval is wrapped in real coordinates before bucketing, so a query
// crossing the seam lands in the low cells and not in the partial last one.
func (f *Field2D) spans(c, d, size float64, n int) [][2]int {
	lo, hi := c-d, c+d
	if !f.toroidal {
		return [][2]int{{f.index(lo, n), f.index(hi, n)}}
	}
	if hi-lo >= size {
		return [][2]int{{0, n - 1}}
	}
	lo, hi = wrapCoord(lo, size), wrapCoord(hi, size)
	if lo <= hi {
		return [][2]int{{f.index(lo, n), f.index(hi, n)}}
	}
	return [][2]int{{f.index(lo, n), n - 1}, {0, f.index(hi, n)}}
}

// NeighborsWithinDistance returns the agents whose committed position lies
// within d of p, sorted by id.
func (f *Field2D) NeighborsWithinDistance(p Real2D, d float64) []sim.AgentID {
	if f.toroidal {
		p = f.Wrap(p)
	}
	seen := make(map[Int2D]struct{})
	var out []sim.AgentID
	for _, ys := range f.spans(p.Y, d, f.height, f.cellsY) {
		for _, xs := range f.spans(p.X, d, f.width, f.cellsX) {
			for y := ys[0]; y <= ys[1]; y++ {
				for x := xs[0]; x <= xs[1]; x++ {
					c := Int2D{X: x, Y: y}
					if _, dup := seen[c]; dup {
						continue
					}
					seen[c] = struct{}{}
					ids, _ := f.cells.Get(c)
					for _, a := range ids {
						q, _ := f.positions.Get(a)
						if f.Distance(p, q) <= d {
							out = append(out, a)
						}
					}
				}
			}
		}
	}
	slices.Sort(out)
	return out
}

// Commit publishes staged moves and rebuilds the affected cell buckets.
func (f *Field2D) Commit() {
	commitInverse(f.positions, f.cells, f.cellOf)
}

package field

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/abm-sim/abm-sim/sim"
)

// Grid2D places agents on integer cells. It keeps two double-buffered maps,
// agent -> cell and cell -> occupants, committed together so that after
// every Commit
//
//	PositionOf(a) == c  <=>  a ∈ OccupantsOf(c)
//
// Only the position map is written by agents; the occupant index is derived
// from the position log at Commit.
type Grid2D struct {
	width, height int
	bounded       bool
	toroidal      bool
	checkInverse  bool

	positions *DBMap[sim.AgentID, Int2D]
	occupants *DBMap[Int2D, []sim.AgentID]
}

// GridOption configures a Grid2D.
type GridOption func(*Grid2D)

// WithInvariantCheck verifies the inverse index after every Commit and
// panics on a violation. Intended for tests and debugging runs.
func WithInvariantCheck() GridOption {
	return func(g *Grid2D) { g.checkInverse = true }
}

// WithToroidal makes neighbourhood queries wrap around the grid edges.
// Ignored for unbounded sparse grids.
func WithToroidal() GridOption {
	return func(g *Grid2D) { g.toroidal = true }
}

// NewSparseGrid2D creates a hash-backed grid. A grid with non-positive
// dimensions is unbounded: any coordinate is accepted.
func NewSparseGrid2D(width, height int, opts ...GridOption) *Grid2D {
	g := &Grid2D{
		width:     width,
		height:    height,
		bounded:   width > 0 && height > 0,
		positions: NewDBMap[sim.AgentID, Int2D](),
		occupants: NewDBMap[Int2D, []sim.AgentID](),
	}
	return g.apply(opts)
}

// NewDenseGrid2D creates a grid whose occupant index is a pre-allocated
// width×height array. It panics on non-positive dimensions.
func NewDenseGrid2D(width, height int, opts ...GridOption) *Grid2D {
	g := &Grid2D{
		width:     width,
		height:    height,
		bounded:   true,
		positions: NewDBMap[sim.AgentID, Int2D](),
		occupants: NewDBMapWithStore[Int2D, []sim.AgentID](NewDenseStore[[]sim.AgentID](width, height)),
	}
	return g.apply(opts)
}

func (g *Grid2D) apply(opts []GridOption) *Grid2D {
	for _, opt := range opts {
		opt(g)
	}
	if !g.bounded {
		g.toroidal = false
	}
	return g
}

func (g *Grid2D) Width() int    { return g.width }
func (g *Grid2D) Height() int   { return g.height }
func (g *Grid2D) Bounded() bool { return g.bounded }

// Len returns the number of placed agents.
func (g *Grid2D) Len() int { return g.positions.Len() }

// PositionOf returns the committed cell of agent a.
func (g *Grid2D) PositionOf(a sim.AgentID) (Int2D, bool) {
	return g.positions.Get(a)
}

// OccupantsOf returns the committed occupants of c sorted by id. The result
// is a copy.
func (g *Grid2D) OccupantsOf(c Int2D) []sim.AgentID {
	ids, _ := g.occupants.Get(c)
	return slices.Clone(ids)
}

// IsEmpty reports whether c has no committed occupant.
func (g *Grid2D) IsEmpty(c Int2D) bool {
	return !g.occupants.Contains(c)
}

// SetPosition stages moving (or placing) agent a to c.
func (g *Grid2D) SetPosition(a sim.AgentID, c Int2D) error {
	if g.bounded && !c.InBounds(g.width, g.height) {
		return fmt.Errorf("placing agent %d at %v on %dx%d grid: %w", a, c, g.width, g.height, ErrOutOfBounds)
	}
	g.positions.Insert(a, c)
	return nil
}

// RemoveAgent stages removing agent a from the grid.
func (g *Grid2D) RemoveAgent(a sim.AgentID) {
	g.positions.Remove(a)
}

// Pending returns the number of staged position writes.
func (g *Grid2D) Pending() int { return g.positions.Pending() }

// Commit publishes staged moves and removals.
func (g *Grid2D) Commit() {
	commitInverse(g.positions, g.occupants, func(c Int2D) Int2D { return c })
	if g.checkInverse {
		if err := g.Verify(); err != nil {
			logrus.Panicf("grid commit broke the position index: %v", err)
		}
	}
}

// Verify checks the inverse law between positions and occupants.
func (g *Grid2D) Verify() error {
	var err error
	g.positions.Range(func(a sim.AgentID, c Int2D) bool {
		ids, _ := g.occupants.Get(c)
		if _, found := slices.BinarySearch(ids, a); !found {
			err = fmt.Errorf("agent %d positioned at %v but not among its occupants %v", a, c, ids)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	total := 0
	g.occupants.Range(func(c Int2D, ids []sim.AgentID) bool {
		for _, a := range ids {
			if p, ok := g.positions.Get(a); !ok || p != c {
				err = fmt.Errorf("agent %d listed at %v but positioned at %v (present=%t)", a, c, p, ok)
				return false
			}
		}
		total += len(ids)
		return true
	})
	if err != nil {
		return err
	}
	if total != g.positions.Len() {
		return fmt.Errorf("%d occupant entries for %d positioned agents", total, g.positions.Len())
	}
	return nil
}

// Range visits every placed agent and its committed cell.
func (g *Grid2D) Range(fn func(a sim.AgentID, c Int2D) bool) {
	g.positions.Range(fn)
}

// EmptyCells lists the committed empty cells in row-major order. It returns
// nil for unbounded grids.
func (g *Grid2D) EmptyCells() []Int2D {
	if !g.bounded {
		return nil
	}
	out := make([]Int2D, 0, g.width*g.height-g.occupants.Len())
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := Int2D{X: x, Y: y}
			if !g.occupants.Contains(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// Neighborhood returns the cells of the Moore neighbourhood of radius r
// around c, wrapped on toroidal grids and clipped on bounded ones.
func (g *Grid2D) Neighborhood(c Int2D, r int) []Int2D {
	cells := Moore(c, r)
	if !g.bounded {
		return cells
	}
	out := cells[:0]
	seen := make(map[Int2D]struct{}, len(cells))
	for _, n := range cells {
		if g.toroidal {
			n = n.Wrap(g.width, g.height)
		} else if !n.InBounds(g.width, g.height) {
			continue
		}
		if n == c {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// NeighborsWithin returns the committed occupants of the Moore neighbourhood
// of radius r around c, excluding the occupants of c itself, sorted by id.
func (g *Grid2D) NeighborsWithin(c Int2D, r int) []sim.AgentID {
	var out []sim.AgentID
	for _, n := range g.Neighborhood(c, r) {
		ids, _ := g.occupants.Get(n)
		out = append(out, ids...)
	}
	slices.Sort(out)
	return out
}

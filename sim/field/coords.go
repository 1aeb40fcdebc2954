package field

import "math"

// Int2D is a discrete grid coordinate.
type Int2D struct {
	X, Y int
}

// Add returns c translated by o.
func (c Int2D) Add(o Int2D) Int2D {
	return Int2D{X: c.X + o.X, Y: c.Y + o.Y}
}

// Wrap maps c onto a w×h torus.
func (c Int2D) Wrap(w, h int) Int2D {
	return Int2D{X: mod(c.X, w), Y: mod(c.Y, h)}
}

// InBounds reports whether c lies in [0,w)×[0,h).
func (c Int2D) InBounds(w, h int) bool {
	return c.X >= 0 && c.X < w && c.Y >= 0 && c.Y < h
}

// Real2D is a continuous coordinate.
type Real2D struct {
	X, Y float64
}

// Distance is the euclidean distance between p and q.
func (p Real2D) Distance(q Real2D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// ToroidalDistance is the euclidean distance on a w×h torus.
func ToroidalDistance(p, q Real2D, w, h float64) float64 {
	dx := math.Abs(p.X - q.X)
	dy := math.Abs(p.Y - q.Y)
	dx = math.Min(dx, w-dx)
	dy = math.Min(dy, h-dy)
	return math.Hypot(dx, dy)
}

// Moore returns the cells within Chebyshev distance r of c, excluding c,
// in row-major order. Coordinates are not bounds-checked.
func Moore(c Int2D, r int) []Int2D {
	out := make([]Int2D, 0, (2*r+1)*(2*r+1)-1)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			out = append(out, Int2D{X: c.X + dx, Y: c.Y + dy})
		}
	}
	return out
}

// VonNeumann returns the cells within Manhattan distance r of c, excluding c,
// in row-major order. Coordinates are not bounds-checked.
func VonNeumann(c Int2D, r int) []Int2D {
	out := make([]Int2D, 0, 2*r*(r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if (dx == 0 && dy == 0) || abs(dx)+abs(dy) > r {
				continue
			}
			out = append(out, Int2D{X: c.X + dx, Y: c.Y + dy})
		}
	}
	return out
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

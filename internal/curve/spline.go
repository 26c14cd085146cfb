// Package curve holds the conveyor centre line: a Catmull-Rom spline through
// a fixed list of control points.
package curve

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrTooFewPoints is returned for paths with fewer than two control points.
var ErrTooFewPoints = errors.New("curve: need at least two control points")

// knotSnap pulls parameters sitting within float noise of a control point
// onto it, so PointAt(i/N) returns P[i] exactly.
const knotSnap = 1e-5

// SplinePath is an immutable uniform Catmull-Rom curve. It is never mutated
// after NewSplinePath, so any number of goroutines may read it.
type SplinePath struct {
	points []mgl32.Vec3
	closed bool
}

func NewSplinePath(points []mgl32.Vec3, closed bool) (*SplinePath, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	cp := make([]mgl32.Vec3, len(points))
	copy(cp, points)
	return &SplinePath{points: cp, closed: closed}, nil
}

// Points returns a copy of the control points. The steering law works on
// these discrete indices, not on the continuous parameter.
func (s *SplinePath) Points() []mgl32.Vec3 {
	cp := make([]mgl32.Vec3, len(s.points))
	copy(cp, s.points)
	return cp
}

// Point returns control point i without copying the whole list.
func (s *SplinePath) Point(i int) mgl32.Vec3 {
	return s.points[i]
}

func (s *SplinePath) Len() int     { return len(s.points) }
func (s *SplinePath) Closed() bool { return s.closed }

func (s *SplinePath) segments() int {
	if s.closed {
		return len(s.points)
	}
	return len(s.points) - 1
}

// PointAt evaluates the curve at t. t wraps into [0,1). A closed path of N
// points passes through P[i] at t = i/N; an open path through P[i] at
// t = i/(N-1), with the final point reached only at t -> 1. A non-finite t
// evaluates as 0.
func (s *SplinePath) PointAt(t float32) mgl32.Vec3 {
	if math32.IsNaN(t) || math32.IsInf(t, 0) {
		t = 0
	}
	t -= math32.Floor(t)
	segs := s.segments()

	u := t * float32(segs)
	i := int(math32.Floor(u))
	f := u - float32(i)
	if f > 1-knotSnap {
		i++
		f = 0
	} else if f < knotSnap {
		f = 0
	}
	if i >= segs {
		if s.closed {
			i -= segs
		} else {
			i, f = segs-1, 1
		}
	}

	p0, p1, p2, p3 := s.window(i)
	if f == 0 {
		return p1
	}
	return catmullRom(p0, p1, p2, p3, f)
}

// window returns the four control points around segment i.
func (s *SplinePath) window(i int) (p0, p1, p2, p3 mgl32.Vec3) {
	n := len(s.points)
	if s.closed {
		return s.points[(i-1+n)%n], s.points[i%n], s.points[(i+1)%n], s.points[(i+2)%n]
	}
	clamp := func(j int) int {
		if j < 0 {
			return 0
		}
		if j >= n {
			return n - 1
		}
		return j
	}
	return s.points[clamp(i-1)], s.points[clamp(i)], s.points[clamp(i+1)], s.points[clamp(i+2)]
}

func catmullRom(p0, p1, p2, p3 mgl32.Vec3, f float32) mgl32.Vec3 {
	f2 := f * f
	f3 := f2 * f
	a := p1.Mul(2)
	b := p2.Sub(p0).Mul(f)
	c := p0.Mul(2).Sub(p1.Mul(5)).Add(p2.Mul(4)).Sub(p3).Mul(f2)
	d := p1.Mul(3).Sub(p0).Sub(p2.Mul(3)).Add(p3).Mul(f3)
	return a.Add(b).Add(c).Add(d).Mul(0.5)
}

// NearestIndex returns the index of the control point closest to p.
func (s *SplinePath) NearestIndex(p mgl32.Vec3) int {
	best, bestDist := 0, math32.Inf(1)
	for i, q := range s.points {
		if d := q.Sub(p).LenSqr(); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// DistanceToPolyline returns the distance from p to the closest segment of
// the control polygon.
func (s *SplinePath) DistanceToPolyline(p mgl32.Vec3) float32 {
	best := math32.Inf(1)
	n := len(s.points)
	for i := 0; i < s.segments(); i++ {
		a, b := s.points[i], s.points[(i+1)%n]
		if d := distanceToSegment(p, a, b); d < best {
			best = d
		}
	}
	return best
}

func distanceToSegment(p, a, b mgl32.Vec3) float32 {
	ab := b.Sub(a)
	l := ab.LenSqr()
	if l == 0 {
		return p.Sub(a).Len()
	}
	t := p.Sub(a).Dot(ab) / l
	t = math32.Max(0, math32.Min(1, t))
	return p.Sub(a.Add(ab.Mul(t))).Len()
}

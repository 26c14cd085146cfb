package physics

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// SupportSpec shapes the static slabs laid under the conveyor path.
type SupportSpec struct {
	FirstSegment int     // segments below this index get no slab
	Width        float32 // margin added around each segment in x and z
	Thickness    float32
	Friction     float32
	Restitution  float32
}

// BeltSupports returns one axis-aligned slab per path segment from
// spec.FirstSegment on. Segment i runs from points[i] to points[i+1] (the
// closing segment N-1 -> 0 exists only on closed paths). The slab top sits at
// the mean height of the segment ends.
func BeltSupports(points []mgl32.Vec3, closed bool, spec SupportSpec) []ColliderDesc {
	n := len(points)
	segs := n - 1
	if closed {
		segs = n
	}
	if n < 2 || spec.FirstSegment >= segs {
		return nil
	}
	first := spec.FirstSegment
	if first < 0 {
		first = 0
	}
	out := make([]ColliderDesc, 0, segs-first)
	for i := first; i < segs; i++ {
		a, b := points[i], points[(i+1)%n]
		minX, maxX := math32.Min(a.X(), b.X()), math32.Max(a.X(), b.X())
		minZ, maxZ := math32.Min(a.Z(), b.Z()), math32.Max(a.Z(), b.Z())
		top := (a.Y() + b.Y()) * 0.5

		half := mgl32.Vec3{
			(maxX-minX)*0.5 + spec.Width,
			spec.Thickness * 0.5,
			(maxZ-minZ)*0.5 + spec.Width,
		}
		center := mgl32.Vec3{(minX + maxX) * 0.5, top - half.Y(), (minZ + maxZ) * 0.5}
		out = append(out, Cuboid(half.X(), half.Y(), half.Z()).
			WithTranslation(center).
			WithFriction(spec.Friction).
			WithRestitution(spec.Restitution))
	}
	return out
}

package world

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/sveltemachine/conveyor/internal/curve"
	"github.com/sveltemachine/conveyor/internal/render"
)

// BeltDots are decorative instances sliding along the path by progress
// value alone, without bodies. They are always visible.
type BeltDots struct {
	path     *curve.SplinePath
	mesh     *render.InstancedMesh
	progress []float64
	rate     float64 // progress lost per ReferenceFrame
	scale    float32
	wraps    uint64
}

// NewBeltDots spreads count dots evenly over the path.
func NewBeltDots(path *curve.SplinePath, count int, rate float64, scale float32, half mgl32.Vec3) *BeltDots {
	d := &BeltDots{
		path:     path,
		mesh:     render.NewInstancedMesh("belt_dots", render.Geometry{Name: "belt_dot", HalfExtents: half}, count),
		progress: make([]float64, count),
		rate:     rate,
		scale:    scale,
	}
	for i := range d.progress {
		d.progress[i] = float64(i) / float64(count)
	}
	d.write()
	return d
}

func (d *BeltDots) Mesh() *render.InstancedMesh { return d.mesh }
func (d *BeltDots) Count() int                  { return len(d.progress) }
func (d *BeltDots) Progress(i int) float64      { return d.progress[i] }

// Wraps counts how many times any dot fell below 0 and restarted at 1.
func (d *BeltDots) Wraps() uint64 { return d.wraps }

func (d *BeltDots) Tick(dt time.Duration) {
	step := d.rate * float64(dt) / float64(ReferenceFrame)
	for i, p := range d.progress {
		p -= step
		if p < 0 {
			p = 1
			d.wraps++
		}
		d.progress[i] = p
	}
	d.write()
}

func (d *BeltDots) write() {
	for i, p := range d.progress {
		pos := d.path.PointAt(float32(p))
		d.mesh.SetInstanceTransform(i, mgl32.Translate3D(pos[0], pos[1], pos[2]).
			Mul4(mgl32.Scale3D(d.scale, d.scale, d.scale)))
	}
	d.mesh.MarkDirty()
	d.mesh.RecomputeBounds()
}

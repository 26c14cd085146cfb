// Package render holds the headless stand-in for the renderer: instanced
// meshes with per-instance transform buffers, the scene that owns them and
// the pulse light. Nothing here draws; buffers are read by whatever presents
// them (the terminal preview, tests, a real renderer behind an adapter).
package render

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Geometry describes the shared drawable of a batch. Only the box half
// extents matter to the headless renderer.
type Geometry struct {
	Name        string
	HalfExtents mgl32.Vec3
}

// Box is an axis-aligned bounding box. A box with Min > Max is empty.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func emptyBox() Box {
	inf := math32.Inf(1)
	return Box{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b Box) Empty() bool { return b.Min[0] > b.Max[0] }

func (b Box) Center() mgl32.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b *Box) extend(center, half mgl32.Vec3) {
	for k := 0; k < 3; k++ {
		b.Min[k] = math32.Min(b.Min[k], center[k]-half[k])
		b.Max[k] = math32.Max(b.Max[k], center[k]+half[k])
	}
}

// InstancedMesh is one geometry drawn Count times, each instance with its
// own model matrix. Writers set transforms freely and call MarkDirty once per
// frame; the version counter is what a renderer would compare to decide on a
// re-upload.
type InstancedMesh struct {
	name       string
	geometry   Geometry
	transforms []mgl32.Mat4
	version    uint64
	bounds     Box
}

// NewInstancedMesh returns a mesh of count identity instances.
func NewInstancedMesh(name string, geometry Geometry, count int) *InstancedMesh {
	m := &InstancedMesh{
		name:       name,
		geometry:   geometry,
		transforms: make([]mgl32.Mat4, count),
		bounds:     emptyBox(),
	}
	for i := range m.transforms {
		m.transforms[i] = mgl32.Ident4()
	}
	return m
}

func (m *InstancedMesh) Name() string       { return m.name }
func (m *InstancedMesh) Geometry() Geometry { return m.geometry }
func (m *InstancedMesh) Count() int         { return len(m.transforms) }
func (m *InstancedMesh) Version() uint64    { return m.version }
func (m *InstancedMesh) Bounds() Box        { return m.bounds }

func (m *InstancedMesh) SetInstanceTransform(i int, t mgl32.Mat4) {
	m.transforms[i] = t
}

func (m *InstancedMesh) InstanceTransform(i int) mgl32.Mat4 {
	return m.transforms[i]
}

// InstancePosition is the translation column of instance i.
func (m *InstancedMesh) InstancePosition(i int) mgl32.Vec3 {
	return m.transforms[i].Col(3).Vec3()
}

// InstanceVisible reports whether instance i has a non-degenerate transform.
// Items parked in the free list are written with scale 0.
func (m *InstancedMesh) InstanceVisible(i int) bool {
	return m.transforms[i].Det() != 0
}

// MarkDirty flags the instance buffer for upload.
func (m *InstancedMesh) MarkDirty() { m.version++ }

// RecomputeBounds refits the bounding box around every visible instance,
// each taken as its geometry box under the instance transform.
func (m *InstancedMesh) RecomputeBounds() {
	b := emptyBox()
	h := m.geometry.HalfExtents
	for i, t := range m.transforms {
		if !m.InstanceVisible(i) {
			continue
		}
		var ext mgl32.Vec3
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				ext[row] += math32.Abs(t.At(row, col)) * h[col]
			}
		}
		b.extend(t.Col(3).Vec3(), ext)
	}
	m.bounds = b
}

// Compose builds the model matrix translate * rotate * scale.
func Compose(pos mgl32.Vec3, rot mgl32.Quat, scale float32) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale, scale, scale))
}

package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/sveltemachine/conveyor/internal/physics"
	"github.com/sveltemachine/conveyor/internal/render"
)

var ErrEmptyPool = errors.New("instanced pool has no slots")

// Preset is the physics tuning applied to every body of a pool. A zero Mass
// keeps the mass the slot was created with.
type Preset struct {
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Friction       float32
	Restitution    float32
}

// Batch is one drawable geometry of a pool and how many instances of it
// the pool holds.
type Batch struct {
	Kind     string
	Geometry render.Geometry
	Count    int
	Mass     float32
}

type poolSlot struct {
	batch    int
	local    int // instance index inside the batch mesh
	body     *physics.RigidBody
	collider *physics.Collider
}

// InstancedPool is a fixed set of instance slots spread over one mesh per
// batch, each slot backed by one dynamic body. Slots are numbered across
// batches in batch order.
type InstancedPool struct {
	name    string
	phys    *physics.World
	rest    mgl32.Vec3
	batches []Batch
	meshes  []*render.InstancedMesh
	touched []bool
	slots   []poolSlot
}

// NewInstancedPool creates every mesh, body and collider up front. Bodies
// start disabled at rest with the preset applied.
func NewInstancedPool(name string, batches []Batch, phys *physics.World, preset Preset, rest mgl32.Vec3) (*InstancedPool, error) {
	if phys == nil {
		return nil, fmt.Errorf("pool %s: %w", name, ErrNoPhysics)
	}
	p := &InstancedPool{
		name:    name,
		phys:    phys,
		rest:    rest,
		batches: append([]Batch(nil), batches...),
		meshes:  make([]*render.InstancedMesh, len(batches)),
		touched: make([]bool, len(batches)),
	}
	for bi, b := range batches {
		if b.Count < 0 {
			return nil, fmt.Errorf("pool %s: batch %s has negative count %d", name, b.Kind, b.Count)
		}
		p.meshes[bi] = render.NewInstancedMesh(name+"/"+b.Kind, b.Geometry, b.Count)
		mass := b.Mass
		if mass <= 0 {
			mass = preset.Mass
		}
		if mass <= 0 {
			mass = 1
		}
		h := b.Geometry.HalfExtents
		for li := 0; li < b.Count; li++ {
			body := phys.CreateRigidBody(physics.NewDynamicBody().
				WithTranslation(rest).
				WithMass(mass).
				WithDamping(preset.LinearDamping, preset.AngularDamping).
				WithEnabled(false))
			col := phys.CreateCollider(physics.Cuboid(h.X(), h.Y(), h.Z()).
				WithFriction(preset.Friction).
				WithRestitution(preset.Restitution).
				WithEnabled(false), body)
			p.slots = append(p.slots, poolSlot{batch: bi, local: li, body: body, collider: col})
		}
	}
	if len(p.slots) == 0 {
		return nil, fmt.Errorf("pool %s: %w", name, ErrEmptyPool)
	}
	for i := range p.slots {
		p.WriteTransform(i, rest, mgl32.QuatIdent(), 0)
	}
	p.Flush()
	return p, nil
}

func (p *InstancedPool) Name() string  { return p.name }
func (p *InstancedPool) Capacity() int { return len(p.slots) }

func (p *InstancedPool) Body(i int) *physics.RigidBody    { return p.slots[i].body }
func (p *InstancedPool) Collider(i int) *physics.Collider { return p.slots[i].collider }
func (p *InstancedPool) Kind(i int) string                { return p.batches[p.slots[i].batch].Kind }
func (p *InstancedPool) Rest() mgl32.Vec3                 { return p.rest }

// Meshes returns one mesh per batch, for adding to the scene.
func (p *InstancedPool) Meshes() []*render.InstancedMesh { return p.meshes }

// Mesh returns the mesh and instance index slot i draws into.
func (p *InstancedPool) Mesh(i int) (*render.InstancedMesh, int) {
	s := p.slots[i]
	return p.meshes[s.batch], s.local
}

func (p *InstancedPool) ApplyPreset(i int, preset Preset) {
	s := p.slots[i]
	if preset.Mass > 0 {
		s.body.SetMass(preset.Mass)
	}
	s.body.SetLinearDamping(preset.LinearDamping)
	s.body.SetAngularDamping(preset.AngularDamping)
	s.collider.SetFriction(preset.Friction)
	s.collider.SetRestitution(preset.Restitution)
}

// WriteTransform stores the instance matrix of slot i. The owning mesh is
// only flagged on the next Flush.
func (p *InstancedPool) WriteTransform(i int, pos mgl32.Vec3, rot mgl32.Quat, scale float32) {
	s := p.slots[i]
	p.meshes[s.batch].SetInstanceTransform(s.local, render.Compose(pos, rot, scale))
	p.touched[s.batch] = true
}

// Flush marks every mesh written since the last flush dirty and refits its
// bounds, once per mesh.
func (p *InstancedPool) Flush() {
	for bi, t := range p.touched {
		if !t {
			continue
		}
		p.meshes[bi].MarkDirty()
		p.meshes[bi].RecomputeBounds()
		p.touched[bi] = false
	}
}

// Enable wakes the body and collider of slot i.
func (p *InstancedPool) Enable(i int) {
	s := p.slots[i]
	s.body.SetEnabled(true)
	s.collider.SetEnabled(true)
}

// ResetBody parks slot i: rest pose, no velocity, body and collider off.
func (p *InstancedPool) ResetBody(i int) {
	s := p.slots[i]
	s.body.SetEnabled(false)
	s.collider.SetEnabled(false)
	s.body.SetTranslation(p.rest)
	s.body.SetRotation(mgl32.QuatIdent())
	s.body.SetLinvel(mgl32.Vec3{})
	s.body.SetAngvel(mgl32.Vec3{})
}

// Close removes every body from the physics world.
func (p *InstancedPool) Close() {
	for _, s := range p.slots {
		p.phys.RemoveRigidBody(s.body)
	}
}

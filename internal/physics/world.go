// Package physics is the rigid-body world the conveyor runs on: dynamic
// bodies integrated with gravity, damping and impulses, resting on static
// box geometry. It is deliberately small; the simulation treats it as a
// black box behind body handles.
package physics

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/sveltemachine/conveyor/internal/core/ecs"
)

// World owns bodies and colliders. Bodies and colliders live in ecs stores
// keyed by entity ID; an attached collider shares its body's ID.
type World struct {
	Gravity mgl32.Vec3
	// StepHeight lets a body resting on static geometry climb onto a
	// neighbouring box whose top is at most this far above its bottom,
	// instead of catching on the box side.
	StepHeight float32

	entities  *ecs.World
	bodies    *ecs.Store[RigidBody]
	colliders *ecs.Store[Collider]
	statics   []*Collider
	steps     uint64
}

func NewWorld(gravity mgl32.Vec3) *World {
	w := &World{
		Gravity:    gravity,
		StepHeight: 0.1,
		entities:   ecs.NewWorld(),
		bodies:     ecs.NewStore[RigidBody](64),
		colliders:  ecs.NewStore[Collider](64),
	}
	w.entities.Register(w.bodies)
	w.entities.Register(w.colliders)
	return w
}

// ECS exposes the entity world so the cleanup system can flush removals.
func (w *World) ECS() *ecs.World { return w.entities }

func (w *World) CreateRigidBody(desc RigidBodyDesc) *RigidBody {
	b := &RigidBody{
		id:             w.entities.CreateEntity(),
		typ:            desc.Type,
		pos:            desc.Translation,
		rot:            normalizedOrIdent(desc.Rotation),
		linearDamping:  desc.LinearDamping,
		angularDamping: desc.AngularDamping,
		gravityScale:   desc.GravityScale,
		enabled:        desc.Enabled,
	}
	if desc.Type == BodyDynamic {
		b.SetMass(desc.Mass)
	}
	w.bodies.Set(b.id, b)
	return b
}

// CreateCollider attaches a collider to parent, or creates free-standing
// static geometry when parent is nil. A body carries at most one collider;
// attaching a second replaces the first.
func (w *World) CreateCollider(desc ColliderDesc, parent *RigidBody) *Collider {
	half := desc.HalfExtents
	if desc.Shape == ShapeBall {
		half = mgl32.Vec3{desc.Radius, desc.Radius, desc.Radius}
	}
	c := &Collider{
		parent:      parent,
		shape:       desc.Shape,
		halfExtents: half,
		offset:      desc.Translation,
		friction:    desc.Friction,
		restitution: desc.Restitution,
		enabled:     desc.Enabled,
	}
	if parent != nil {
		if old := parent.collider; old != nil {
			old.removed = true
		}
		c.id = parent.id
		parent.collider = c
	} else {
		c.id = w.entities.CreateEntity()
	}
	w.colliders.Set(c.id, c)
	if c.static() {
		w.statics = append(w.statics, c)
	}
	return c
}

// RemoveRigidBody disables b and its collider immediately and queues both
// for removal at the next ecs flush.
func (w *World) RemoveRigidBody(b *RigidBody) {
	b.SetEnabled(false)
	b.removed = true
	if b.collider != nil {
		b.collider.removed = true
	}
	w.entities.MarkForDestruction(b.id)
}

// RemoveCollider detaches c. Free-standing colliders release their entity.
func (w *World) RemoveCollider(c *Collider) {
	c.removed = true
	if c.parent == nil {
		w.entities.MarkForDestruction(c.id)
		return
	}
	if c.parent.collider == c {
		c.parent.collider = nil
		w.colliders.Remove(c.id)
	}
}

func (w *World) BodyCount() int     { return w.bodies.Len() }
func (w *World) ColliderCount() int { return w.colliders.Len() }
func (w *World) Steps() uint64      { return w.steps }

// Step advances the world by dt: integrate enabled dynamic bodies, then push
// them out of static geometry.
func (w *World) Step(dt time.Duration) {
	h := float32(dt.Seconds())
	if h <= 0 {
		return
	}
	w.compactStatics()

	w.bodies.Each(func(_ ecs.EntityID, b *RigidBody) {
		if !b.active() {
			return
		}
		integrate(b, w.Gravity, h)
	})

	ecs.Each2(w.bodies, w.colliders, func(_ ecs.EntityID, b *RigidBody, c *Collider) {
		if !b.active() || !c.Enabled() {
			return
		}
		for _, s := range w.statics {
			if s.Enabled() {
				resolve(b, c, s, w.StepHeight)
			}
		}
	})
	w.steps++
}

func (w *World) compactStatics() {
	kept := w.statics[:0]
	for _, s := range w.statics {
		if !s.removed {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(w.statics); i++ {
		w.statics[i] = nil
	}
	w.statics = kept
}

func integrate(b *RigidBody, gravity mgl32.Vec3, h float32) {
	if b.gravityScale != 0 {
		b.linvel = b.linvel.Add(gravity.Mul(b.gravityScale * h))
	}
	b.linvel = b.linvel.Mul(1 / (1 + h*b.linearDamping))
	b.angvel = b.angvel.Mul(1 / (1 + h*b.angularDamping))

	b.pos = b.pos.Add(b.linvel.Mul(h))

	if b.angvel.LenSqr() > 0 {
		spin := mgl32.Quat{W: 0, V: b.angvel.Mul(0.5 * h)}
		b.rot = b.rot.Add(spin.Mul(b.rot)).Normalize()
	}
}

// resolve pushes dynamic body b (collider c) out of static collider s along
// the axis of least penetration, then applies restitution along the normal
// and Coulomb friction along the tangent. A body above s that sinks less
// than step into it is always pushed up.
func resolve(b *RigidBody, c, s *Collider, step float32) {
	d := c.Translation().Sub(s.Translation())
	reach := c.halfExtents.Add(s.halfExtents)

	axis := -1
	depth := math32.Inf(1)
	for k := 0; k < 3; k++ {
		overlap := reach[k] - math32.Abs(d[k])
		if overlap <= 0 {
			return
		}
		if overlap < depth {
			axis, depth = k, overlap
		}
	}
	if up := reach[1] - math32.Abs(d[1]); axis != 1 && d[1] > 0 && up <= step {
		axis, depth = 1, up
	}

	var normal mgl32.Vec3
	if d[axis] < 0 {
		normal[axis] = -1
	} else {
		normal[axis] = 1
	}
	b.pos = b.pos.Add(normal.Mul(depth))

	vn := b.linvel.Dot(normal)
	if vn >= 0 {
		return
	}
	restitution := (c.restitution + s.restitution) * 0.5
	friction := (c.friction + s.friction) * 0.5

	jn := -(1 + restitution) * vn
	b.linvel = b.linvel.Add(normal.Mul(jn))

	tangent := b.linvel.Sub(normal.Mul(b.linvel.Dot(normal)))
	speed := tangent.Len()
	if speed < 1e-6 {
		return
	}
	drop := math32.Min(speed, friction*jn)
	b.linvel = b.linvel.Sub(tangent.Mul(drop / speed))
}

func normalizedOrIdent(q mgl32.Quat) mgl32.Quat {
	if q.Len() == 0 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/sveltemachine/conveyor/internal/core/ecs"
)

type Shape int

const (
	ShapeCuboid Shape = iota
	ShapeBall
)

// ColliderDesc describes collision geometry. Translation is relative to the
// parent body, or a world position for colliders created without one.
type ColliderDesc struct {
	Shape       Shape
	HalfExtents mgl32.Vec3
	Radius      float32
	Translation mgl32.Vec3
	Friction    float32
	Restitution float32
	Enabled     bool
}

func Cuboid(hx, hy, hz float32) ColliderDesc {
	return ColliderDesc{
		Shape:       ShapeCuboid,
		HalfExtents: mgl32.Vec3{hx, hy, hz},
		Friction:    0.5,
		Enabled:     true,
	}
}

func Ball(radius float32) ColliderDesc {
	return ColliderDesc{
		Shape:    ShapeBall,
		Radius:   radius,
		Friction: 0.5,
		Enabled:  true,
	}
}

func (d ColliderDesc) WithTranslation(v mgl32.Vec3) ColliderDesc {
	d.Translation = v
	return d
}

func (d ColliderDesc) WithFriction(f float32) ColliderDesc {
	d.Friction = f
	return d
}

func (d ColliderDesc) WithRestitution(r float32) ColliderDesc {
	d.Restitution = r
	return d
}

func (d ColliderDesc) WithEnabled(enabled bool) ColliderDesc {
	d.Enabled = enabled
	return d
}

// Collider is collision geometry, optionally attached to a body. Contacts
// are resolved as axis-aligned boxes: a ball uses its bounding cube and body
// rotation is ignored.
type Collider struct {
	id          ecs.EntityID
	parent      *RigidBody
	shape       Shape
	halfExtents mgl32.Vec3
	offset      mgl32.Vec3
	friction    float32
	restitution float32
	enabled     bool
	removed     bool
}

func (c *Collider) ID() ecs.EntityID        { return c.id }
func (c *Collider) Parent() *RigidBody      { return c.parent }
func (c *Collider) Shape() Shape            { return c.shape }
func (c *Collider) HalfExtents() mgl32.Vec3 { return c.halfExtents }

func (c *Collider) Enabled() bool { return c.enabled && !c.removed }
func (c *Collider) SetEnabled(enabled bool) {
	c.enabled = enabled
}

func (c *Collider) Friction() float32        { return c.friction }
func (c *Collider) SetFriction(f float32)    { c.friction = f }
func (c *Collider) Restitution() float32     { return c.restitution }
func (c *Collider) SetRestitution(r float32) { c.restitution = r }

// Translation returns the world-space centre of the collider.
func (c *Collider) Translation() mgl32.Vec3 {
	if c.parent == nil {
		return c.offset
	}
	return c.parent.pos.Add(c.offset)
}

func (c *Collider) static() bool {
	return c.parent == nil || c.parent.typ == BodyFixed
}

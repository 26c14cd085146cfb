package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/sveltemachine/conveyor/internal/core/ecs"
)

type BodyType int

const (
	BodyDynamic BodyType = iota // integrated every step
	BodyFixed                   // never moves; its colliders act as static geometry
)

// RigidBodyDesc describes a body before it is inserted into a World.
type RigidBodyDesc struct {
	Type           BodyType
	Translation    mgl32.Vec3
	Rotation       mgl32.Quat
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	GravityScale   float32
	Enabled        bool
}

// NewDynamicBody returns a unit-mass, gravity-affected, enabled body at the
// origin.
func NewDynamicBody() RigidBodyDesc {
	return RigidBodyDesc{
		Type:         BodyDynamic,
		Rotation:     mgl32.QuatIdent(),
		Mass:         1,
		GravityScale: 1,
		Enabled:      true,
	}
}

// NewFixedBody returns an enabled fixed body at the origin.
func NewFixedBody() RigidBodyDesc {
	return RigidBodyDesc{
		Type:     BodyFixed,
		Rotation: mgl32.QuatIdent(),
		Enabled:  true,
	}
}

func (d RigidBodyDesc) WithTranslation(v mgl32.Vec3) RigidBodyDesc {
	d.Translation = v
	return d
}

func (d RigidBodyDesc) WithMass(m float32) RigidBodyDesc {
	d.Mass = m
	return d
}

func (d RigidBodyDesc) WithDamping(linear, angular float32) RigidBodyDesc {
	d.LinearDamping = linear
	d.AngularDamping = angular
	return d
}

func (d RigidBodyDesc) WithEnabled(enabled bool) RigidBodyDesc {
	d.Enabled = enabled
	return d
}

// RigidBody is a handle to a body living in a World. All access happens on
// the simulation goroutine.
type RigidBody struct {
	id             ecs.EntityID
	typ            BodyType
	pos            mgl32.Vec3
	rot            mgl32.Quat
	linvel         mgl32.Vec3
	angvel         mgl32.Vec3
	invMass        float32
	linearDamping  float32
	angularDamping float32
	gravityScale   float32
	enabled        bool
	removed        bool
	collider       *Collider
}

func (b *RigidBody) ID() ecs.EntityID { return b.id }
func (b *RigidBody) Type() BodyType   { return b.typ }

func (b *RigidBody) Translation() mgl32.Vec3 { return b.pos }
func (b *RigidBody) SetTranslation(v mgl32.Vec3) {
	b.pos = v
}

func (b *RigidBody) Rotation() mgl32.Quat { return b.rot }
func (b *RigidBody) SetRotation(q mgl32.Quat) {
	b.rot = q.Normalize()
}

func (b *RigidBody) Linvel() mgl32.Vec3 { return b.linvel }
func (b *RigidBody) SetLinvel(v mgl32.Vec3) {
	if b.dynamic() {
		b.linvel = v
	}
}

func (b *RigidBody) Angvel() mgl32.Vec3 { return b.angvel }
func (b *RigidBody) SetAngvel(v mgl32.Vec3) {
	if b.dynamic() {
		b.angvel = v
	}
}

// ApplyImpulse changes the linear velocity by impulse/mass. Disabled and
// fixed bodies ignore impulses.
func (b *RigidBody) ApplyImpulse(impulse mgl32.Vec3) {
	if !b.active() {
		return
	}
	b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
}

func (b *RigidBody) Enabled() bool { return b.enabled && !b.removed }

// SetEnabled toggles simulation of the body. Disabling also zeroes both
// velocities so a body re-enabled later starts at rest.
func (b *RigidBody) SetEnabled(enabled bool) {
	b.enabled = enabled
	if !enabled {
		b.linvel = mgl32.Vec3{}
		b.angvel = mgl32.Vec3{}
	}
}

func (b *RigidBody) Mass() float32 {
	if b.invMass == 0 {
		return 0
	}
	return 1 / b.invMass
}

func (b *RigidBody) SetMass(m float32) {
	if m <= 0 {
		b.invMass = 0
		return
	}
	b.invMass = 1 / m
}

func (b *RigidBody) LinearDamping() float32      { return b.linearDamping }
func (b *RigidBody) SetLinearDamping(d float32)  { b.linearDamping = d }
func (b *RigidBody) AngularDamping() float32     { return b.angularDamping }
func (b *RigidBody) SetAngularDamping(d float32) { b.angularDamping = d }
func (b *RigidBody) GravityScale() float32       { return b.gravityScale }
func (b *RigidBody) SetGravityScale(s float32)   { b.gravityScale = s }
func (b *RigidBody) Collider() *Collider         { return b.collider }

func (b *RigidBody) dynamic() bool { return b.typ == BodyDynamic }
func (b *RigidBody) active() bool  { return b.dynamic() && b.enabled && !b.removed && b.invMass > 0 }

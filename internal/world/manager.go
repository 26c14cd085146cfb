// Package world runs the conveyor: two item pools, the spawn timer, the
// path-following control law, raw-to-packed promotion and despawn. All
// state is owned by the simulation goroutine; nothing here locks.
package world

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/sveltemachine/conveyor/internal/core/event"
	"github.com/sveltemachine/conveyor/internal/curve"
	"github.com/sveltemachine/conveyor/internal/physics"
	"github.com/sveltemachine/conveyor/internal/render"
)

// ReferenceFrame is the frame length the per-frame tuning constants (belt
// dot rate, steering impulse) are expressed in.
const ReferenceFrame = time.Second / 60

var (
	ErrNoScene        = errors.New("world: no scene")
	ErrNoPhysics      = errors.New("world: no physics world")
	ErrNoPath         = errors.New("world: no path")
	ErrNoPool         = errors.New("world: missing item pool")
	ErrBadSettings    = errors.New("world: invalid settings")
	ErrSlotOutOfRange = errors.New("world: slot out of range")
	ErrSlotBusy       = errors.New("world: slot not free")
)

// SceneAdder is the part of the scene graph the manager needs.
type SceneAdder interface {
	Add(meshes ...*render.InstancedMesh)
}

// LightPulser is flashed on every promotion.
type LightPulser interface {
	Pulse()
}

// Easer shapes the scale-in and scale-out transitions. t is in [0,1].
type Easer interface {
	ScaleEase(t float32) float32
}

// Tuner overrides the physics preset of one item kind.
type Tuner interface {
	PhysicsPreset(kind string, base Preset) Preset
}

// Deps are the collaborators of a Manager. Scene, Physics, Path, Raw and
// Packed are required; the rest may be nil.
type Deps struct {
	Scene   SceneAdder
	Physics *physics.World
	Path    *curve.SplinePath
	Raw     *InstancedPool
	Packed  *InstancedPool
	Light   LightPulser
	Events  *event.Bus
	Easer   Easer
	Tuner   Tuner
	Rand    *rand.Rand
	Log     *zap.Logger
}

type Settings struct {
	SpawnPeriod     time.Duration
	ScaleDuration   time.Duration
	SpawnParam      float32    // curve parameter of the spawn point
	SpawnLift       mgl32.Vec3 // added to the spawn point
	SpawnIndex      int
	PackIndex       int
	AdvanceDistance float32
	FloorY          float32
	Impulse         float32 // per ReferenceFrame
	PackedLift      mgl32.Vec3
	WrapPath        bool
	RawPreset       Preset
	PackedPreset    Preset
}

// DefaultSettings match the shipped configuration for the 24-point belt.
func DefaultSettings() Settings {
	return Settings{
		SpawnPeriod:     3 * time.Second,
		ScaleDuration:   10 * ReferenceFrame,
		SpawnParam:      0.99,
		SpawnLift:       mgl32.Vec3{0, 5, 0},
		SpawnIndex:      22,
		PackIndex:       12,
		AdvanceDistance: 2,
		FloorY:          -10,
		Impulse:         0.05,
		PackedLift:      mgl32.Vec3{0, 0.5, 0},
		RawPreset:       Preset{LinearDamping: 0.5, AngularDamping: 0.5, Friction: 0.01, Restitution: 0.05},
		PackedPreset:    Preset{LinearDamping: 0.3, AngularDamping: 0.5, Friction: 0.01, Restitution: 0.05},
	}
}

func (s Settings) validate(points int) error {
	var errs []error
	if s.SpawnPeriod <= 0 {
		errs = append(errs, errors.New("spawn period must be positive"))
	}
	if s.ScaleDuration < 0 {
		errs = append(errs, errors.New("scale duration must not be negative"))
	}
	if s.SpawnIndex < 0 || s.SpawnIndex >= points {
		errs = append(errs, fmt.Errorf("spawn index %d outside %d points", s.SpawnIndex, points))
	}
	if s.PackIndex < 0 || s.PackIndex >= points {
		errs = append(errs, fmt.Errorf("pack index %d outside %d points", s.PackIndex, points))
	}
	if !(s.SpawnParam >= 0 && s.SpawnParam < 1) {
		errs = append(errs, fmt.Errorf("spawn param %v outside [0,1)", s.SpawnParam))
	}
	if !(s.AdvanceDistance > 0) || math32.IsInf(s.AdvanceDistance, 0) {
		errs = append(errs, errors.New("advance distance must be positive and finite"))
	}
	if !(s.Impulse >= 0) || math32.IsInf(s.Impulse, 0) {
		errs = append(errs, errors.New("impulse must be non-negative and finite"))
	}
	if !finite(s.FloorY) {
		errs = append(errs, errors.New("floor y must be finite"))
	}
	for _, v := range []mgl32.Vec3{s.SpawnLift, s.PackedLift} {
		if !finite(v[0]) || !finite(v[1]) || !finite(v[2]) {
			errs = append(errs, fmt.Errorf("lift %v must be finite", v))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSettings, err)
	}
	return nil
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// Counts are the free and active list lengths of both pools.
type Counts struct {
	RawFree      int
	RawActive    int
	PackedFree   int
	PackedActive int
}

// Manager owns the raw and packed pools and drives every active item.
type Manager struct {
	path     *curve.SplinePath
	points   []mgl32.Vec3
	raw      *InstancedPool
	packed   *InstancedPool
	rawPool  *Pool
	packPool *Pool

	light  LightPulser
	events *event.Bus
	easer  Easer
	tuner  Tuner
	rng    *rand.Rand
	log    *zap.Logger

	settings Settings
	spawnAcc time.Duration
	ticks    uint64
}

// NewManager wires the pools into the scene, fills both free lists and
// applies the physics presets.
func NewManager(deps Deps, settings Settings) (*Manager, error) {
	switch {
	case deps.Scene == nil:
		return nil, ErrNoScene
	case deps.Physics == nil:
		return nil, ErrNoPhysics
	case deps.Path == nil:
		return nil, ErrNoPath
	case deps.Raw == nil || deps.Packed == nil:
		return nil, ErrNoPool
	}
	if err := settings.validate(deps.Path.Len()); err != nil {
		return nil, err
	}
	m := &Manager{
		path:     deps.Path,
		points:   deps.Path.Points(),
		raw:      deps.Raw,
		packed:   deps.Packed,
		rawPool:  newPool(deps.Raw.Capacity()),
		packPool: newPool(deps.Packed.Capacity()),
		light:    deps.Light,
		events:   deps.Events,
		easer:    deps.Easer,
		tuner:    deps.Tuner,
		rng:      deps.Rand,
		log:      deps.Log,
		settings: settings,
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	deps.Scene.Add(deps.Raw.Meshes()...)
	deps.Scene.Add(deps.Packed.Meshes()...)
	m.ApplyPresets()
	return m, nil
}

// ApplyPresets pushes the raw and packed presets (through the tuner, when
// set) onto every body. Raw slot i is tuned alongside packed slot i.
func (m *Manager) ApplyPresets() {
	n := max(m.raw.Capacity(), m.packed.Capacity())
	for i := 0; i < n; i++ {
		if i < m.raw.Capacity() {
			m.raw.ApplyPreset(i, m.tune(m.raw.Kind(i), m.settings.RawPreset))
		}
		if i < m.packed.Capacity() {
			m.packed.ApplyPreset(i, m.tune(m.packed.Kind(i), m.settings.PackedPreset))
		}
	}
}

func (m *Manager) tune(kind string, base Preset) Preset {
	if m.tuner == nil {
		return base
	}
	return m.tuner.PhysicsPreset(kind, base)
}

func (m *Manager) ease(t float32) float32 {
	if m.easer == nil {
		return t
	}
	return m.easer.ScaleEase(t)
}

func (m *Manager) Settings() Settings           { return m.settings }
func (m *Manager) Path() *curve.SplinePath      { return m.path }
func (m *Manager) RawPool() *Pool               { return m.rawPool }
func (m *Manager) PackedPool() *Pool            { return m.packPool }
func (m *Manager) RawInstances() *InstancedPool { return m.raw }
func (m *Manager) PackedInstances() *InstancedPool {
	return m.packed
}
func (m *Manager) Ticks() uint64 { return m.ticks }

func (m *Manager) Counts() Counts {
	return Counts{
		RawFree:      m.rawPool.FreeCount(),
		RawActive:    m.rawPool.ActiveCount(),
		PackedFree:   m.packPool.FreeCount(),
		PackedActive: m.packPool.ActiveCount(),
	}
}

// Tick advances the spawn timer and every active item by dt. The physics
// step and the transform write-back (Sync) are separate calls.
func (m *Manager) Tick(dt time.Duration) {
	m.ticks++
	m.spawnAcc += dt
	for m.spawnAcc >= m.settings.SpawnPeriod {
		m.spawnAcc -= m.settings.SpawnPeriod
		m.ActivateRandom()
	}

	// Backwards: finishing a deactivation swap-removes the current item.
	active := m.rawPool.active
	for i := len(active) - 1; i >= 0; i-- {
		m.step(active[i], dt)
	}
}

// ActivateRandom spawns a uniformly chosen free raw item. It returns false
// when the free list is empty.
func (m *Manager) ActivateRandom() (slot int, ok bool) {
	free := m.rawPool.free
	if len(free) == 0 {
		m.log.Debug("raw pool exhausted, spawn skipped")
		return -1, false
	}
	it := free[m.rng.Intn(len(free))]
	m.activate(it)
	return it.Slot, true
}

// Activate spawns raw item slot. The slot must exist and be free.
func (m *Manager) Activate(slot int) error {
	if slot < 0 || slot >= m.rawPool.Capacity() {
		return fmt.Errorf("activate slot %d of %d: %w", slot, m.rawPool.Capacity(), ErrSlotOutOfRange)
	}
	it := m.rawPool.items[slot]
	if it.state != StateFree {
		return fmt.Errorf("activate slot %d (%s): %w", slot, it.state, ErrSlotBusy)
	}
	m.activate(it)
	return nil
}

func (m *Manager) activate(it *PooledItem) {
	m.rawPool.take(it)

	spawn := m.path.PointAt(m.settings.SpawnParam).Add(m.settings.SpawnLift)
	m.raw.ResetBody(it.Slot)
	m.raw.Body(it.Slot).SetTranslation(spawn)
	m.raw.Enable(it.Slot)

	it.active = true
	it.pathIndex = m.settings.SpawnIndex
	it.scale = 0
	it.state = StateActivating
	it.tween.start(0, 1, m.settings.ScaleDuration)
	if m.settings.ScaleDuration <= 0 {
		it.scale = 1
		it.state = StateFollowing
	}

	m.log.Debug("item spawned", zap.Int("slot", it.Slot), zap.String("kind", m.raw.Kind(it.Slot)))
	event.Emit(m.events, event.ItemSpawned{Slot: it.Slot, Kind: m.raw.Kind(it.Slot)})
}

// driven returns the body the control law acts on for raw item it.
func (m *Manager) driven(it *PooledItem) *physics.RigidBody {
	if it.paired != nil {
		return m.packed.Body(it.paired.Slot)
	}
	return m.raw.Body(it.Slot)
}

func (m *Manager) step(it *PooledItem, dt time.Duration) {
	if it.state == StateDeactivating {
		scale, done := it.tween.advance(dt, m.ease)
		it.scale = scale
		if it.paired != nil {
			it.paired.scale = scale
		}
		if done {
			m.finishDeactivation(it)
		}
		return
	}
	if it.state == StateActivating {
		scale, done := it.tween.advance(dt, m.ease)
		it.scale = scale
		if done {
			it.state = StateFollowing
		}
	}

	body := m.driven(it)
	pos := body.Translation()
	if pos.Y() < m.settings.FloorY {
		m.deactivate(it)
		return
	}

	target := m.points[it.pathIndex]
	dir := target.Sub(pos)
	dist := dir.Len()
	if dist > 1e-6 {
		k := m.settings.Impulse * float32(dt) / float32(ReferenceFrame)
		body.ApplyImpulse(dir.Mul(k / dist))
	}
	if dist < m.settings.AdvanceDistance {
		m.advance(it)
	}

	if it.pathIndex == m.settings.PackIndex && it.paired == nil {
		m.promote(it)
	}
}

// advance moves the path index one control point backwards. At index 0 the
// item holds unless the path wraps.
func (m *Manager) advance(it *PooledItem) {
	switch {
	case it.pathIndex > 0:
		it.pathIndex--
	case m.settings.WrapPath:
		it.pathIndex = len(m.points) - 1
	}
}

// promote swaps raw item it for a packed item carrying its motion.
func (m *Manager) promote(it *PooledItem) {
	free := m.packPool.free
	if len(free) == 0 {
		m.log.Debug("packed pool exhausted, promotion deferred", zap.Int("slot", it.Slot))
		return
	}
	pk := free[len(free)-1]
	m.packPool.take(pk)

	rb := m.raw.Body(it.Slot)
	pb := m.packed.Body(pk.Slot)
	pb.SetTranslation(rb.Translation().Add(m.settings.PackedLift))
	pb.SetRotation(rb.Rotation())
	m.packed.Enable(pk.Slot)
	pb.SetLinvel(rb.Linvel())
	pb.SetAngvel(rb.Angvel())

	m.raw.ResetBody(it.Slot)
	m.raw.WriteTransform(it.Slot, m.raw.Rest(), mgl32.QuatIdent(), 0)

	if it.state == StateActivating {
		it.tween.running = false
	}
	it.scale = 1
	it.paired = pk
	it.state = StatePackedFollowing

	pk.active = true
	pk.owner = it
	pk.scale = 1
	pk.state = StatePackedFollowing

	if m.light != nil {
		m.light.Pulse()
	}
	m.log.Debug("item packed", zap.Int("slot", it.Slot), zap.Int("packed_slot", pk.Slot))
	event.Emit(m.events, event.ItemPacked{RawSlot: it.Slot, PackedSlot: pk.Slot})
}

// Deactivate starts the scale-out of raw item slot. It is a no-op for free
// items and for items already scaling out.
func (m *Manager) Deactivate(slot int) error {
	if slot < 0 || slot >= m.rawPool.Capacity() {
		return fmt.Errorf("deactivate slot %d of %d: %w", slot, m.rawPool.Capacity(), ErrSlotOutOfRange)
	}
	m.deactivate(m.rawPool.items[slot])
	return nil
}

func (m *Manager) deactivate(it *PooledItem) {
	if !it.active || it.resetting {
		return
	}
	it.resetting = true
	it.state = StateDeactivating
	it.tween.start(it.scale, 0, m.settings.ScaleDuration)
	if pk := it.paired; pk != nil {
		pk.state = StateDeactivating
	}
	if m.settings.ScaleDuration <= 0 {
		m.finishDeactivation(it)
	}
}

func (m *Manager) finishDeactivation(it *PooledItem) {
	packedSlot := -1
	if pk := it.paired; pk != nil {
		packedSlot = pk.Slot
		m.packed.ResetBody(pk.Slot)
		m.packed.WriteTransform(pk.Slot, m.packed.Rest(), mgl32.QuatIdent(), 0)
		pk.active = false
		pk.owner = nil
		pk.scale = 0
		pk.state = StateFree
		m.packPool.release(pk)
	}

	m.raw.ResetBody(it.Slot)
	m.raw.WriteTransform(it.Slot, m.raw.Rest(), mgl32.QuatIdent(), 0)
	it.active = false
	it.pathIndex = -1
	it.paired = nil
	it.resetting = false
	it.scale = 0
	it.state = StateFree
	m.rawPool.release(it)

	m.log.Debug("item despawned", zap.Int("slot", it.Slot), zap.Int("packed_slot", packedSlot))
	event.Emit(m.events, event.ItemDespawned{Slot: it.Slot, PackedSlot: packedSlot})
}

// Sync writes the transform of every active item into the instance
// buffers, then flushes both pools.
func (m *Manager) Sync() {
	for _, it := range m.rawPool.active {
		if pk := it.paired; pk != nil {
			b := m.packed.Body(pk.Slot)
			m.packed.WriteTransform(pk.Slot, b.Translation(), b.Rotation(), pk.scale)
			continue
		}
		b := m.raw.Body(it.Slot)
		m.raw.WriteTransform(it.Slot, b.Translation(), b.Rotation(), it.scale)
	}
	m.raw.Flush()
	m.packed.Flush()
}

// Close removes every pooled body from the physics world.
func (m *Manager) Close() {
	m.raw.Close()
	m.packed.Close()
}

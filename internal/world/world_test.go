package world

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sveltemachine/conveyor/internal/core/event"
	"github.com/sveltemachine/conveyor/internal/curve"
	"github.com/sveltemachine/conveyor/internal/physics"
	"github.com/sveltemachine/conveyor/internal/render"
)

const frame = ReferenceFrame

var rest = mgl32.Vec3{0, -100, 0}

// beltPoints is the 24-point rectangle the shipped path uses.
func beltPoints() []mgl32.Vec3 {
	var pts []mgl32.Vec3
	for x := float32(-16); x <= 16; x += 4 {
		pts = append(pts, mgl32.Vec3{x, 0, -8})
	}
	for z := float32(-4); z <= 8; z += 4 {
		pts = append(pts, mgl32.Vec3{16, 0, z})
	}
	for x := float32(12); x >= -16; x -= 4 {
		pts = append(pts, mgl32.Vec3{x, 0, 8})
	}
	for z := float32(4); z >= -4; z -= 4 {
		pts = append(pts, mgl32.Vec3{-16, 0, z})
	}
	return pts
}

type fakeLight struct{ pulses int }

func (l *fakeLight) Pulse() { l.pulses++ }

type harness struct {
	m      *Manager
	phys   *physics.World
	scene  *render.Scene
	light  *fakeLight
	events *event.Bus
}

func newHarness(t *testing.T, rawCounts []int, packedCount int, settings Settings) *harness {
	t.Helper()
	path, err := curve.NewSplinePath(beltPoints(), true)
	require.NoError(t, err)
	require.Equal(t, 24, path.Len())

	phys := physics.NewWorld(mgl32.Vec3{})
	var batches []Batch
	kinds := []string{"cube", "sphere", "cylinder"}
	for i, n := range rawCounts {
		batches = append(batches, Batch{
			Kind:     kinds[i%len(kinds)],
			Geometry: render.Geometry{Name: kinds[i%len(kinds)], HalfExtents: mgl32.Vec3{0.5, 0.5, 0.5}},
			Count:    n,
			Mass:     1,
		})
	}
	raw, err := NewInstancedPool("raw", batches, phys, settings.RawPreset, rest)
	require.NoError(t, err)
	packed, err := NewInstancedPool("packed", []Batch{{
		Kind:     "packed",
		Geometry: render.Geometry{Name: "box", HalfExtents: mgl32.Vec3{0.6, 0.6, 0.6}},
		Count:    packedCount,
		Mass:     1,
	}}, phys, settings.PackedPreset, rest)
	require.NoError(t, err)

	h := &harness{phys: phys, scene: render.NewScene(), light: &fakeLight{}, events: event.NewBus()}
	h.m, err = NewManager(Deps{
		Scene:   h.scene,
		Physics: phys,
		Path:    path,
		Raw:     raw,
		Packed:  packed,
		Light:   h.light,
		Events:  h.events,
		Rand:    rand.New(rand.NewSource(7)),
		Log:     zaptest.NewLogger(t),
	}, settings)
	require.NoError(t, err)
	return h
}

// quietSettings never fires the spawn timer on its own.
func quietSettings() Settings {
	s := DefaultSettings()
	s.SpawnPeriod = time.Hour
	return s
}

func (h *harness) tick() {
	h.m.Tick(frame)
	h.phys.Step(frame)
	h.m.Sync()
	h.events.SwapBuffers()
	h.events.DispatchAll()
}

// runUntil ticks until cond holds, failing after limit ticks.
func (h *harness) runUntil(t *testing.T, limit int, cond func() bool) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		h.tick()
		if cond() {
			return i
		}
	}
	require.FailNow(t, "condition not reached", "after %d ticks", limit)
	return 0
}

func assertConserved(t *testing.T, p *Pool) {
	t.Helper()
	require.Equal(t, p.Capacity(), p.FreeCount()+p.ActiveCount())
	seen := make(map[int]bool)
	for _, it := range p.free {
		require.False(t, seen[it.Slot], "slot %d listed twice", it.Slot)
		require.False(t, it.active)
		seen[it.Slot] = true
	}
	for _, it := range p.active {
		require.False(t, seen[it.Slot], "slot %d listed twice", it.Slot)
		require.True(t, it.active)
		seen[it.Slot] = true
	}
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	path, err := curve.NewSplinePath(beltPoints(), true)
	require.NoError(t, err)
	phys := physics.NewWorld(mgl32.Vec3{})
	one := []Batch{{Kind: "cube", Count: 1}}
	raw, err := NewInstancedPool("raw", one, phys, Preset{}, rest)
	require.NoError(t, err)
	packed, err := NewInstancedPool("packed", one, phys, Preset{}, rest)
	require.NoError(t, err)
	full := Deps{Scene: render.NewScene(), Physics: phys, Path: path, Raw: raw, Packed: packed}

	noScene := full
	noScene.Scene = nil
	_, err = NewManager(noScene, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoScene)

	noPhys := full
	noPhys.Physics = nil
	_, err = NewManager(noPhys, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoPhysics)

	noPath := full
	noPath.Path = nil
	_, err = NewManager(noPath, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoPath)

	noPool := full
	noPool.Packed = nil
	_, err = NewManager(noPool, DefaultSettings())
	assert.ErrorIs(t, err, ErrNoPool)

	bad := DefaultSettings()
	bad.PackIndex = 24
	_, err = NewManager(full, bad)
	assert.ErrorIs(t, err, ErrBadSettings)

	for name, mutate := range map[string]func(*Settings){
		"nan spawn param": func(s *Settings) { s.SpawnParam = float32(math.NaN()) },
		"spawn param 1":   func(s *Settings) { s.SpawnParam = 1 },
		"inf lift":        func(s *Settings) { s.SpawnLift[1] = float32(math.Inf(1)) },
		"nan floor":       func(s *Settings) { s.FloorY = float32(math.NaN()) },
		"nan advance":     func(s *Settings) { s.AdvanceDistance = float32(math.NaN()) },
		"negative push":   func(s *Settings) { s.Impulse = -1 },
	} {
		bad := DefaultSettings()
		mutate(&bad)
		_, err = NewManager(full, bad)
		assert.ErrorIs(t, err, ErrBadSettings, name)
	}

	_, err = NewInstancedPool("raw", one, nil, Preset{}, rest)
	assert.ErrorIs(t, err, ErrNoPhysics)
	_, err = NewInstancedPool("raw", nil, phys, Preset{}, rest)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestConstructionFillsFreeListsAndScene(t *testing.T) {
	h := newHarness(t, []int{12, 8}, 20, quietSettings())

	assert.Equal(t, Counts{RawFree: 20, PackedFree: 20}, h.m.Counts())
	require.Len(t, h.scene.Meshes(), 3)
	assert.Equal(t, 40, h.scene.Instances())

	raw := h.m.RawInstances()
	assert.Equal(t, "cube", raw.Kind(0))
	assert.Equal(t, "sphere", raw.Kind(12))
	for i := 0; i < raw.Capacity(); i++ {
		b := raw.Body(i)
		assert.False(t, b.Enabled())
		assert.False(t, raw.Collider(i).Enabled())
		assert.Equal(t, rest, b.Translation())
		assert.Equal(t, float32(0.5), b.LinearDamping())
		assert.Equal(t, float32(0.01), raw.Collider(i).Friction())
		mesh, idx := raw.Mesh(i)
		assert.False(t, mesh.InstanceVisible(idx))
	}
	assert.Equal(t, float32(0.3), h.m.PackedInstances().Body(0).LinearDamping())
}

type sphereTuner struct{}

func (sphereTuner) PhysicsPreset(kind string, base Preset) Preset {
	if kind == "sphere" {
		base.Friction = 0.2
		base.Mass = 3
	}
	return base
}

func TestApplyPresetsUsesTuner(t *testing.T) {
	h := newHarness(t, []int{2, 2}, 4, quietSettings())
	h.m.tuner = sphereTuner{}
	h.m.ApplyPresets()

	raw := h.m.RawInstances()
	assert.Equal(t, float32(0.01), raw.Collider(0).Friction())
	assert.Equal(t, float32(1), raw.Body(0).Mass())
	assert.Equal(t, float32(0.2), raw.Collider(2).Friction())
	assert.Equal(t, float32(3), raw.Body(2).Mass())
}

func TestActivateRejectsBadSlots(t *testing.T) {
	h := newHarness(t, []int{3}, 3, quietSettings())

	assert.ErrorIs(t, h.m.Activate(-1), ErrSlotOutOfRange)
	assert.ErrorIs(t, h.m.Activate(3), ErrSlotOutOfRange)
	assert.Equal(t, Counts{RawFree: 3, PackedFree: 3}, h.m.Counts())

	require.NoError(t, h.m.Activate(1))
	err := h.m.Activate(1)
	assert.ErrorIs(t, err, ErrSlotBusy)
	assert.Equal(t, Counts{RawFree: 2, RawActive: 1, PackedFree: 3}, h.m.Counts())
	assertConserved(t, h.m.RawPool())
}

func TestActivatePlacesItemAtSpawnPoint(t *testing.T) {
	h := newHarness(t, []int{4}, 4, quietSettings())
	require.NoError(t, h.m.Activate(2))

	it := h.m.RawPool().Item(2)
	assert.Equal(t, StateActivating, it.State())
	idx, ok := it.PathIndex()
	require.True(t, ok)
	assert.Equal(t, 22, idx)
	assert.Equal(t, float32(0), it.Scale())

	want := h.m.Path().PointAt(0.99).Add(mgl32.Vec3{0, 5, 0})
	b := h.m.RawInstances().Body(2)
	assert.True(t, b.Translation().ApproxEqualThreshold(want, 1e-5))
	assert.True(t, b.Enabled())
	assert.True(t, h.m.RawInstances().Collider(2).Enabled())

	for i := 0; i < 10; i++ {
		h.tick()
	}
	assert.Equal(t, StateFollowing, it.State())
	assert.Equal(t, float32(1), it.Scale())

	mesh, local := h.m.RawInstances().Mesh(2)
	assert.True(t, mesh.InstancePosition(local).ApproxEqualThreshold(b.Translation(), 1e-5))
	assert.True(t, mesh.InstanceVisible(local))
}

func TestSpawnTimerAndExhaustion(t *testing.T) {
	s := DefaultSettings()
	s.SpawnPeriod = 10 * frame
	h := newHarness(t, []int{2}, 2, s)

	var spawned []int
	event.Subscribe(h.events, func(ev event.ItemSpawned) { spawned = append(spawned, ev.Slot) })

	for i := 0; i < 9; i++ {
		h.tick()
	}
	assert.Equal(t, 0, h.m.Counts().RawActive)
	h.tick()
	assert.Equal(t, 1, h.m.Counts().RawActive)

	for i := 0; i < 20; i++ {
		h.tick()
	}
	assert.Equal(t, Counts{RawActive: 2, PackedFree: 2}, h.m.Counts())
	assert.ElementsMatch(t, []int{0, 1}, spawned)

	_, ok := h.m.ActivateRandom()
	assert.False(t, ok)
	assertConserved(t, h.m.RawPool())
}

func TestSeededSelectionIsDeterministic(t *testing.T) {
	pick := func() []int {
		h := newHarness(t, []int{10}, 10, quietSettings())
		var slots []int
		for i := 0; i < 5; i++ {
			slot, ok := h.m.ActivateRandom()
			require.True(t, ok)
			slots = append(slots, slot)
		}
		return slots
	}
	assert.Equal(t, pick(), pick())
}

func TestPathIndexIsMonotonic(t *testing.T) {
	h := newHarness(t, []int{1}, 1, quietSettings())
	require.NoError(t, h.m.Activate(0))
	it := h.m.RawPool().Item(0)

	last := 22
	for i := 0; i < 1500; i++ {
		h.tick()
		idx, ok := it.PathIndex()
		require.True(t, ok)
		require.LessOrEqual(t, idx, last)
		last = idx
	}
	assert.Less(t, last, 22)
}

func TestAdvanceHoldsAtZeroUnlessWrapping(t *testing.T) {
	h := newHarness(t, []int{1}, 1, quietSettings())
	it := &PooledItem{active: true, pathIndex: 1}
	h.m.advance(it)
	assert.Equal(t, 0, it.pathIndex)
	h.m.advance(it)
	assert.Equal(t, 0, it.pathIndex)

	h.m.settings.WrapPath = true
	h.m.advance(it)
	assert.Equal(t, 23, it.pathIndex)
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t, []int{12, 8}, 20, quietSettings())
	var packed []event.ItemPacked
	var despawned []event.ItemDespawned
	event.Subscribe(h.events, func(ev event.ItemPacked) { packed = append(packed, ev) })
	event.Subscribe(h.events, func(ev event.ItemDespawned) { despawned = append(despawned, ev) })

	require.NoError(t, h.m.Activate(5))
	it := h.m.RawPool().Item(5)
	assert.Equal(t, Counts{RawFree: 19, RawActive: 1, PackedFree: 20}, h.m.Counts())

	h.runUntil(t, 6000, func() bool { return it.Paired() != nil })
	pk := it.Paired()
	idx, _ := it.PathIndex()
	assert.Equal(t, 12, idx)
	assert.Equal(t, StatePackedFollowing, it.State())
	assert.True(t, it.Active())
	assert.Same(t, it, pk.Owner())
	assert.Equal(t, Counts{RawFree: 19, RawActive: 1, PackedFree: 19, PackedActive: 1}, h.m.Counts())
	assert.Equal(t, 1, h.light.pulses)

	rb := h.m.RawInstances().Body(5)
	assert.False(t, rb.Enabled())
	assert.Equal(t, rest, rb.Translation())
	pb := h.m.PackedInstances().Body(pk.Slot)
	assert.True(t, pb.Enabled())
	assert.Greater(t, pb.Linvel().Len(), float32(0))

	h.phys.Gravity = mgl32.Vec3{0, -9.81, 0}
	h.runUntil(t, 2000, func() bool { return it.State() == StateDeactivating })
	assert.True(t, it.Resetting())
	assert.Equal(t, StateDeactivating, pk.State())

	h.runUntil(t, 20, func() bool { return it.State() == StateFree })
	assert.Equal(t, Counts{RawFree: 20, PackedFree: 20}, h.m.Counts())

	assert.Nil(t, it.Paired())
	assert.False(t, it.Resetting())
	_, ok := it.PathIndex()
	assert.False(t, ok)
	assert.Nil(t, pk.Owner())
	for _, b := range []*physics.RigidBody{rb, pb} {
		assert.False(t, b.Enabled())
		assert.Equal(t, rest, b.Translation())
		assert.Equal(t, mgl32.Vec3{}, b.Linvel())
		assert.Equal(t, mgl32.Vec3{}, b.Angvel())
	}
	require.Len(t, packed, 1)
	assert.Equal(t, event.ItemPacked{RawSlot: 5, PackedSlot: pk.Slot}, packed[0])
	require.Len(t, despawned, 1)
	assert.Equal(t, event.ItemDespawned{Slot: 5, PackedSlot: pk.Slot}, despawned[0])
	assertConserved(t, h.m.RawPool())
	assertConserved(t, h.m.PackedPool())
}

func TestPairingIsExclusive(t *testing.T) {
	h := newHarness(t, []int{6}, 2, quietSettings())
	for slot := 0; slot < 6; slot++ {
		require.NoError(t, h.m.Activate(slot))
	}

	for i := 0; i < 3000; i++ {
		h.tick()
		owners := make(map[*PooledItem]*PooledItem)
		paired := 0
		for _, it := range h.m.RawPool().active {
			if pk := it.Paired(); pk != nil {
				paired++
				prev, dup := owners[pk]
				require.False(t, dup, "packed slot %d paired to %d and %d", pk.Slot, it.Slot, slotOf(prev))
				owners[pk] = it
				require.Same(t, it, pk.Owner())
			}
		}
		for _, pk := range h.m.PackedPool().active {
			require.NotNil(t, owners[pk], "packed slot %d has no owner", pk.Slot)
		}
		require.Equal(t, paired, h.m.PackedPool().ActiveCount())
		assertConserved(t, h.m.RawPool())
		assertConserved(t, h.m.PackedPool())
	}
	assert.Equal(t, 2, h.m.PackedPool().ActiveCount())
	assert.Equal(t, 2, h.light.pulses)
}

func TestDeferredPromotionPairsWhenPackedItemReturns(t *testing.T) {
	h := newHarness(t, []int{2}, 1, quietSettings())
	pack := h.m.Settings().PackIndex
	require.NoError(t, h.m.Activate(0))
	require.NoError(t, h.m.Activate(1))
	a, b := h.m.RawPool().Item(0), h.m.RawPool().Item(1)

	// both items sit at the spawn point, far from the pack point
	require.Greater(t, h.m.RawInstances().Body(1).Translation().Sub(h.m.Path().Point(pack)).Len(),
		3*h.m.Settings().AdvanceDistance)

	a.pathIndex = pack
	h.tick()
	require.NotNil(t, a.Paired())
	assert.Equal(t, 0, h.m.PackedPool().FreeCount())

	b.pathIndex = pack
	h.tick()
	assert.Nil(t, b.Paired(), "packed pool is empty")
	idx, ok := b.PathIndex()
	require.True(t, ok)
	require.Equal(t, pack, idx)

	require.NoError(t, h.m.Deactivate(0))
	h.runUntil(t, 60, func() bool {
		if a.State() != StateFree {
			require.Nil(t, b.Paired())
		}
		return a.State() == StateFree
	})
	h.tick()

	require.NotNil(t, b.Paired())
	assert.Equal(t, StatePackedFollowing, b.State())
	assert.Same(t, b, b.Paired().Owner())
	assert.Equal(t, 2, h.light.pulses)
	assertConserved(t, h.m.PackedPool())
}

func slotOf(it *PooledItem) int {
	if it == nil {
		return -1
	}
	return it.Slot
}

func TestDeactivateIsIdempotent(t *testing.T) {
	h := newHarness(t, []int{2}, 2, quietSettings())
	var despawns int
	event.Subscribe(h.events, func(event.ItemDespawned) { despawns++ })

	require.NoError(t, h.m.Activate(0))
	for i := 0; i < 10; i++ {
		h.tick()
	}
	it := h.m.RawPool().Item(0)
	require.Equal(t, StateFollowing, it.State())

	require.NoError(t, h.m.Deactivate(0))
	assert.Equal(t, StateDeactivating, it.State())
	for i := 0; i < 5; i++ {
		h.tick()
	}
	require.NoError(t, h.m.Deactivate(0))
	assert.Less(t, it.Scale(), float32(1))
	for i := 0; i < 4; i++ {
		h.tick()
	}
	assert.Equal(t, StateDeactivating, it.State())
	h.tick()
	assert.Equal(t, StateFree, it.State())
	assert.Equal(t, 1, despawns)

	require.NoError(t, h.m.Deactivate(0))
	assert.Equal(t, StateFree, it.State())
	assert.ErrorIs(t, h.m.Deactivate(9), ErrSlotOutOfRange)
	assertConserved(t, h.m.RawPool())
}

func TestItemBelowFloorDespawnsUnpacked(t *testing.T) {
	s := quietSettings()
	s.ScaleDuration = 0
	h := newHarness(t, []int{1}, 1, s)
	var despawned []event.ItemDespawned
	event.Subscribe(h.events, func(ev event.ItemDespawned) { despawned = append(despawned, ev) })

	require.NoError(t, h.m.Activate(0))
	assert.Equal(t, StateFollowing, h.m.RawPool().Item(0).State())
	h.m.RawInstances().Body(0).SetTranslation(mgl32.Vec3{0, -11, 0})
	h.tick()

	assert.Equal(t, StateFree, h.m.RawPool().Item(0).State())
	require.Len(t, despawned, 1)
	assert.Equal(t, -1, despawned[0].PackedSlot)
}

func TestImpulseScalesWithFrameDelta(t *testing.T) {
	s := quietSettings()
	s.ScaleDuration = 0
	one := newHarness(t, []int{1}, 1, s)
	two := newHarness(t, []int{1}, 1, s)
	require.NoError(t, one.m.Activate(0))
	require.NoError(t, two.m.Activate(0))

	one.m.Tick(frame)
	two.m.Tick(2 * frame)
	v1 := one.m.RawInstances().Body(0).Linvel().Len()
	v2 := two.m.RawInstances().Body(0).Linvel().Len()
	assert.InDelta(t, 0.05, v1, 1e-5)
	assert.InDelta(t, 2*v1, v2, 1e-5)
}

func TestSnapshotCopiesState(t *testing.T) {
	h := newHarness(t, []int{3}, 3, quietSettings())
	require.NoError(t, h.m.Activate(1))
	h.tick()

	snap := h.m.Snapshot()
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, Counts{RawFree: 2, RawActive: 1, PackedFree: 3}, snap.Counts)
	require.Len(t, snap.Items, 3)
	assert.Equal(t, -1, snap.Items[0].PathIndex)
	active := snap.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Slot)
	assert.Equal(t, "cube", active[0].Kind)
	assert.Equal(t, 22, active[0].PathIndex)
	assert.Equal(t, -1, active[0].PackedSlot)
	assert.Equal(t, h.m.RawInstances().Body(1).Translation(), active[0].Position)

	h.tick()
	assert.NotEqual(t, h.m.Snapshot().Tick, snap.Tick)
}

func TestSyncFlushesTouchedMeshesOnce(t *testing.T) {
	s := quietSettings()
	s.ScaleDuration = 0
	h := newHarness(t, []int{2, 2}, 4, s)
	raw := h.m.RawInstances()
	cubes, spheres := raw.Meshes()[0], raw.Meshes()[1]
	c0, s0 := cubes.Version(), spheres.Version()

	require.NoError(t, h.m.Activate(0))
	require.NoError(t, h.m.Activate(1))
	h.m.Sync()
	assert.Equal(t, c0+1, cubes.Version())
	assert.Equal(t, s0, spheres.Version())
	assert.False(t, cubes.Bounds().Empty())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "packed-following", StatePackedFollowing.String())
	assert.Equal(t, "unknown", State(42).String())
}

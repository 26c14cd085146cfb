// Package machine assembles the conveyor from configuration: data files,
// physics world, scene, pools, manager, belt and the system runner.
package machine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sveltemachine/conveyor/internal/config"
	"github.com/sveltemachine/conveyor/internal/core/event"
	coresys "github.com/sveltemachine/conveyor/internal/core/system"
	"github.com/sveltemachine/conveyor/internal/curve"
	"github.com/sveltemachine/conveyor/internal/data"
	"github.com/sveltemachine/conveyor/internal/physics"
	"github.com/sveltemachine/conveyor/internal/render"
	"github.com/sveltemachine/conveyor/internal/render/termview"
	"github.com/sveltemachine/conveyor/internal/scripting"
	"github.com/sveltemachine/conveyor/internal/system"
	"github.com/sveltemachine/conveyor/internal/world"
)

type State int

const (
	StateLoading State = iota // built, Start not yet called (or failed)
	StateReady                // accepting ticks
	StateStopped              // closed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrNotReady       = errors.New("machine: not ready")
	ErrAlreadyStarted = errors.New("machine: already started")
)

// Machine owns every piece of the simulation. All methods except
// ReloadScripts must be called from the simulation goroutine.
type Machine struct {
	cfg   *config.Config
	log   *zap.Logger
	state State

	path    *curve.SplinePath
	kinds   *data.KindTable
	scripts *scripting.Engine
	phys    *physics.World
	scene   *render.Scene
	light   *render.PulseLight
	bus     *event.Bus
	manager *world.Manager
	belt    *world.BeltDots
	runner  *coresys.Runner
	stats   *system.StatsSystem
	preview *termview.View
	reload  chan struct{}
}

func New(cfg *config.Config, log *zap.Logger) *Machine {
	return &Machine{
		cfg:    cfg,
		log:    log,
		scene:  render.NewScene(),
		bus:    event.NewBus(),
		reload: make(chan struct{}, 1),
	}
}

// AttachPreview draws the scene onto view every preview.every ticks. Call
// before Start.
func (m *Machine) AttachPreview(view *termview.View) {
	m.preview = view
}

// Start loads the data files and scripts and builds the simulation. On
// error nothing is left running and the machine stays in StateLoading.
func (m *Machine) Start() (err error) {
	if m.state != StateLoading {
		return fmt.Errorf("start in state %s: %w", m.state, ErrAlreadyStarted)
	}
	cfg := m.cfg

	pathData, err := data.LoadPath(cfg.Path.File)
	if err != nil {
		return fmt.Errorf("load path: %w", err)
	}
	m.path, err = curve.NewSplinePath(pathData.Vectors(), pathData.Closed)
	if err != nil {
		return fmt.Errorf("build path: %w", err)
	}
	if err := cfg.CheckPath(m.path.Len()); err != nil {
		return fmt.Errorf("check config against path: %w", err)
	}
	m.kinds, err = data.LoadKindTable(cfg.Items.File)
	if err != nil {
		return fmt.Errorf("load item kinds: %w", err)
	}

	m.scripts, err = scripting.NewEngine(cfg.Scripting.Dir, m.log)
	if err != nil {
		return fmt.Errorf("init lua engine: %w", err)
	}
	defer func() {
		if err != nil {
			m.scripts.Close()
			m.scripts = nil
		}
	}()

	m.phys = physics.NewWorld(cfg.Physics.Gravity)
	if sup := cfg.Physics.Supports; sup.Enabled {
		descs := physics.BeltSupports(m.path.Points(), m.path.Closed(), physics.SupportSpec{
			FirstSegment: sup.FirstSegment,
			Width:        sup.Width,
			Thickness:    sup.Thickness,
			Friction:     sup.Friction,
			Restitution:  sup.Restitution,
		})
		for _, d := range descs {
			m.phys.CreateCollider(d, nil)
		}
		m.log.Debug("belt supports created", zap.Int("count", len(descs)))
	}

	settings := m.settings()
	raw, err := world.NewInstancedPool("raw", rawBatches(m.kinds), m.phys, settings.RawPreset, cfg.Physics.RestPosition)
	if err != nil {
		return fmt.Errorf("raw pool: %w", err)
	}
	packed, err := world.NewInstancedPool("packed", []world.Batch{{
		Kind:     cfg.Items.PackedName,
		Geometry: render.Geometry{Name: cfg.Items.PackedName, HalfExtents: cfg.Items.PackedHalfExtents},
		Count:    m.kinds.TotalCapacity(),
		Mass:     cfg.Items.PackedMass,
	}}, m.phys, settings.PackedPreset, cfg.Physics.RestPosition)
	if err != nil {
		return fmt.Errorf("packed pool: %w", err)
	}

	deps := world.Deps{
		Scene:   m.scene,
		Physics: m.phys,
		Path:    m.path,
		Raw:     raw,
		Packed:  packed,
		Events:  m.bus,
		Easer:   m.scripts,
		Tuner:   scriptTuner{m.scripts},
		Rand:    rand.New(rand.NewSource(m.seed())),
		Log:     m.log.Named("world"),
	}
	if cfg.Light.Enabled {
		m.light = render.NewPulseLight(cfg.Light.Base, cfg.Light.Peak, cfg.Light.Decay)
		deps.Light = m.light
	}
	m.manager, err = world.NewManager(deps, settings)
	if err != nil {
		return fmt.Errorf("world manager: %w", err)
	}

	m.belt = world.NewBeltDots(m.path, cfg.Belt.DotCount, cfg.Belt.DotRate, cfg.Belt.DotScale, cfg.Items.BeltDotHalfExtents)
	m.scene.Add(m.belt.Mesh())

	m.stats = system.NewStatsSystem(m.bus, m.manager, cfg.Simulation.StatsInterval, m.log.Named("stats"))
	m.runner = coresys.NewRunner()
	m.runner.Register(system.NewEventSystem(m.bus))
	m.runner.Register(system.NewScriptReloadSystem(m.scripts, m.manager, m.reload, m.bus, m.log))
	m.runner.Register(system.NewConveyorSystem(m.manager))
	m.runner.Register(system.NewPhysicsSystem(m.phys))
	m.runner.Register(system.NewBeltSystem(m.belt))
	m.runner.Register(system.NewRenderSyncSystem(m.manager, m.light))
	if m.preview != nil {
		m.runner.Register(system.NewPreviewSystem(m.preview, m.scene, m.manager, cfg.Preview.Every))
	}
	m.runner.Register(m.stats)
	m.runner.Register(system.NewCleanupSystem(m.phys.ECS(), m.log))

	m.state = StateReady
	m.log.Info("conveyor ready",
		zap.Int("path_points", m.path.Len()),
		zap.Int("item_kinds", m.kinds.Count()),
		zap.Int("raw_capacity", raw.Capacity()),
		zap.Int("packed_capacity", packed.Capacity()),
		zap.Int("belt_dots", m.belt.Count()),
		zap.Int("scripts", m.scripts.Files()),
		zap.Int("bodies", m.phys.BodyCount()),
		zap.Int("colliders", m.phys.ColliderCount()),
		zap.Int("systems", m.runner.Len()),
	)
	return nil
}

func (m *Machine) seed() int64 {
	if s := m.cfg.Simulation.Seed; s != 0 {
		return int64(s)
	}
	return time.Now().UnixNano()
}

func (m *Machine) settings() world.Settings {
	c := m.cfg
	return world.Settings{
		SpawnPeriod:     c.Simulation.SpawnPeriod,
		ScaleDuration:   c.Simulation.ScaleDuration,
		SpawnParam:      c.Path.SpawnParam,
		SpawnLift:       c.Path.SpawnLift,
		SpawnIndex:      c.Path.SpawnIndex,
		PackIndex:       c.Path.PackIndex,
		AdvanceDistance: c.Path.AdvanceDistance,
		FloorY:          c.Path.FloorY,
		Impulse:         c.Control.Impulse,
		PackedLift:      c.Control.PackedLift,
		WrapPath:        c.Path.WrapPath,
		RawPreset:       preset(c.Physics.Raw),
		PackedPreset:    preset(c.Physics.Packed),
	}
}

func preset(p config.PresetConfig) world.Preset {
	return world.Preset{
		LinearDamping:  p.LinearDamping,
		AngularDamping: p.AngularDamping,
		Friction:       p.Friction,
		Restitution:    p.Restitution,
	}
}

func rawBatches(kinds *data.KindTable) []world.Batch {
	out := make([]world.Batch, 0, kinds.Count())
	for _, k := range kinds.Kinds() {
		out = append(out, world.Batch{
			Kind:     k.Name,
			Geometry: render.Geometry{Name: k.Name, HalfExtents: k.Extents()},
			Count:    k.Capacity,
			Mass:     k.Mass,
		})
	}
	return out
}

// Tick advances the whole simulation by dt.
func (m *Machine) Tick(dt time.Duration) error {
	if m.state != StateReady {
		return fmt.Errorf("tick in state %s: %w", m.state, ErrNotReady)
	}
	m.runner.Tick(dt)
	return nil
}

// ReloadScripts asks the loop to reload the Lua scripts on its next tick.
// Safe from any goroutine.
func (m *Machine) ReloadScripts() {
	select {
	case m.reload <- struct{}{}:
	default:
	}
}

// ReloadSignal is the channel the script watcher writes to.
func (m *Machine) ReloadSignal() chan<- struct{} { return m.reload }

// Close removes every pooled body and stops the script engine. It is safe
// to call more than once.
func (m *Machine) Close() {
	if m.state == StateReady {
		m.stats.Log()
		m.manager.Close()
		m.phys.ECS().FlushDestroyQueue()
		m.scripts.Close()
	}
	m.state = StateStopped
}

func (m *Machine) State() State               { return m.state }
func (m *Machine) Manager() *world.Manager    { return m.manager }
func (m *Machine) Belt() *world.BeltDots      { return m.belt }
func (m *Machine) Scene() *render.Scene       { return m.scene }
func (m *Machine) Physics() *physics.World    { return m.phys }
func (m *Machine) Light() *render.PulseLight  { return m.light }
func (m *Machine) Scripts() *scripting.Engine { return m.scripts }
func (m *Machine) Bus() *event.Bus            { return m.bus }
func (m *Machine) Totals() system.Totals      { return m.stats.Totals() }
func (m *Machine) Snapshot() world.Snapshot   { return m.manager.Snapshot() }
func (m *Machine) Path() *curve.SplinePath    { return m.path }
func (m *Machine) ItemKinds() *data.KindTable { return m.kinds }

// scriptTuner layers the Lua physics_preset overrides over the configured
// preset of a kind.
type scriptTuner struct {
	scripts *scripting.Engine
}

func (t scriptTuner) PhysicsPreset(kind string, base world.Preset) world.Preset {
	o := t.scripts.PhysicsOverrides(kind)
	if v, ok := o["mass"]; ok && v > 0 {
		base.Mass = v
	}
	if v, ok := o["linear_damping"]; ok {
		base.LinearDamping = v
	}
	if v, ok := o["angular_damping"]; ok {
		base.AngularDamping = v
	}
	if v, ok := o["friction"]; ok {
		base.Friction = v
	}
	if v, ok := o["restitution"]; ok {
		base.Restitution = v
	}
	return base
}

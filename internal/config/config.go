package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl32"
)

type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Path       PathConfig       `toml:"path"`
	Control    ControlConfig    `toml:"control"`
	Items      ItemsConfig      `toml:"items"`
	Physics    PhysicsConfig    `toml:"physics"`
	Belt       BeltConfig       `toml:"belt"`
	Light      LightConfig      `toml:"light"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Logging    LoggingConfig    `toml:"logging"`
	Preview    PreviewConfig    `toml:"preview"`
}

type SimulationConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`      // fixed frame delta fed to every system
	Seed          uint64        `toml:"seed"`           // 0 = seed from the clock
	SpawnPeriod   time.Duration `toml:"spawn_period"`   // one raw item per period
	ScaleDuration time.Duration `toml:"scale_duration"` // scale-in / scale-out length
	StatsInterval time.Duration `toml:"stats_interval"` // 0 disables periodic stats logging
}

type PathConfig struct {
	File            string     `toml:"file"`
	SpawnParam      float32    `toml:"spawn_param"` // curve parameter of the spawn point, [0,1)
	SpawnLift       mgl32.Vec3 `toml:"spawn_lift"`  // offset added to the spawn point
	SpawnIndex      int        `toml:"spawn_index"` // first control point an item steers to
	PackIndex       int        `toml:"pack_index"`  // control point where raw items get packed
	AdvanceDistance float32    `toml:"advance_distance"`
	FloorY          float32    `toml:"floor_y"` // items below this height despawn
	WrapPath        bool       `toml:"wrap_path"`
}

type ControlConfig struct {
	Impulse    float32    `toml:"impulse"`     // steering impulse per reference frame
	PackedLift mgl32.Vec3 `toml:"packed_lift"` // packed item appears this far above the raw one
}

type ItemsConfig struct {
	File               string     `toml:"file"`
	PackedName         string     `toml:"packed_name"`
	PackedHalfExtents  mgl32.Vec3 `toml:"packed_half_extents"`
	PackedMass         float32    `toml:"packed_mass"`
	BeltDotHalfExtents mgl32.Vec3 `toml:"belt_dot_half_extents"`
}

type PresetConfig struct {
	LinearDamping  float32 `toml:"linear_damping"`
	AngularDamping float32 `toml:"angular_damping"`
	Friction       float32 `toml:"friction"`
	Restitution    float32 `toml:"restitution"`
}

type SupportConfig struct {
	Enabled      bool    `toml:"enabled"`
	FirstSegment int     `toml:"first_segment"` // segments before this index have no belt under them
	Width        float32 `toml:"width"`
	Thickness    float32 `toml:"thickness"`
	Friction     float32 `toml:"friction"`
	Restitution  float32 `toml:"restitution"`
}

type PhysicsConfig struct {
	Gravity      mgl32.Vec3    `toml:"gravity"`
	RestPosition mgl32.Vec3    `toml:"rest_position"`
	Raw          PresetConfig  `toml:"raw"`
	Packed       PresetConfig  `toml:"packed"`
	Supports     SupportConfig `toml:"supports"`
}

type BeltConfig struct {
	DotCount int     `toml:"dot_count"`
	DotRate  float64 `toml:"dot_rate"` // progress lost per reference frame
	DotScale float32 `toml:"dot_scale"`
}

type LightConfig struct {
	Enabled bool    `toml:"enabled"`
	Base    float32 `toml:"base"`
	Peak    float32 `toml:"peak"`
	Decay   float32 `toml:"decay"` // intensity units per second
}

type ScriptingConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type PreviewConfig struct {
	Enabled bool    `toml:"enabled"`
	Scale   float32 `toml:"scale"` // terminal cells per world unit
	Every   int     `toml:"every"` // redraw every N ticks
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with. Path-dependent
// limits (spawn and pack index against the point count) are checked once the
// path is loaded, by CheckPath. Range checks are written so NaN fails them.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range c.floats() {
		if !finite(f.v) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", f.name, f.v))
		}
	}
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, errors.New("simulation.tick_rate must be positive"))
	}
	if c.Simulation.SpawnPeriod <= 0 {
		errs = append(errs, errors.New("simulation.spawn_period must be positive"))
	}
	if c.Simulation.ScaleDuration < 0 {
		errs = append(errs, errors.New("simulation.scale_duration must not be negative"))
	}
	if !(c.Path.SpawnParam >= 0 && c.Path.SpawnParam < 1) {
		errs = append(errs, fmt.Errorf("path.spawn_param %v outside [0,1)", c.Path.SpawnParam))
	}
	if !(c.Path.AdvanceDistance > 0) {
		errs = append(errs, errors.New("path.advance_distance must be positive"))
	}
	if !(c.Control.Impulse > 0) {
		errs = append(errs, errors.New("control.impulse must be positive"))
	}
	if !(c.Items.PackedMass > 0) {
		errs = append(errs, errors.New("items.packed_mass must be positive"))
	}
	if c.Belt.DotCount < 0 {
		errs = append(errs, errors.New("belt.dot_count must not be negative"))
	}
	if !(c.Belt.DotRate >= 0 && c.Belt.DotRate <= 1) {
		errs = append(errs, fmt.Errorf("belt.dot_rate %v outside [0,1]", c.Belt.DotRate))
	}
	if c.Preview.Every < 1 {
		errs = append(errs, errors.New("preview.every must be at least 1"))
	}
	return errors.Join(errs...)
}

type namedFloat struct {
	name string
	v    float64
}

func (c *Config) floats() []namedFloat {
	out := []namedFloat{
		{"path.spawn_param", float64(c.Path.SpawnParam)},
		{"path.advance_distance", float64(c.Path.AdvanceDistance)},
		{"path.floor_y", float64(c.Path.FloorY)},
		{"control.impulse", float64(c.Control.Impulse)},
		{"items.packed_mass", float64(c.Items.PackedMass)},
		{"physics.supports.width", float64(c.Physics.Supports.Width)},
		{"physics.supports.thickness", float64(c.Physics.Supports.Thickness)},
		{"physics.supports.friction", float64(c.Physics.Supports.Friction)},
		{"physics.supports.restitution", float64(c.Physics.Supports.Restitution)},
		{"belt.dot_rate", c.Belt.DotRate},
		{"belt.dot_scale", float64(c.Belt.DotScale)},
		{"light.base", float64(c.Light.Base)},
		{"light.peak", float64(c.Light.Peak)},
		{"light.decay", float64(c.Light.Decay)},
		{"preview.scale", float64(c.Preview.Scale)},
	}
	vecs := []struct {
		name string
		v    mgl32.Vec3
	}{
		{"path.spawn_lift", c.Path.SpawnLift},
		{"control.packed_lift", c.Control.PackedLift},
		{"items.packed_half_extents", c.Items.PackedHalfExtents},
		{"items.belt_dot_half_extents", c.Items.BeltDotHalfExtents},
		{"physics.gravity", c.Physics.Gravity},
		{"physics.rest_position", c.Physics.RestPosition},
	}
	for _, v := range vecs {
		for i, x := range v.v {
			out = append(out, namedFloat{fmt.Sprintf("%s[%d]", v.name, i), float64(x)})
		}
	}
	presets := []struct {
		name string
		p    PresetConfig
	}{
		{"physics.raw", c.Physics.Raw},
		{"physics.packed", c.Physics.Packed},
	}
	for _, ps := range presets {
		name, p := ps.name, ps.p
		out = append(out,
			namedFloat{name + ".linear_damping", float64(p.LinearDamping)},
			namedFloat{name + ".angular_damping", float64(p.AngularDamping)},
			namedFloat{name + ".friction", float64(p.Friction)},
			namedFloat{name + ".restitution", float64(p.Restitution)},
		)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CheckPath validates the index settings against a path of n control points.
func (c *Config) CheckPath(n int) error {
	if c.Path.SpawnIndex < 0 || c.Path.SpawnIndex >= n {
		return fmt.Errorf("path.spawn_index %d outside path of %d points", c.Path.SpawnIndex, n)
	}
	if c.Path.PackIndex < 0 || c.Path.PackIndex >= n {
		return fmt.Errorf("path.pack_index %d outside path of %d points", c.Path.PackIndex, n)
	}
	if c.Physics.Supports.FirstSegment < 0 || c.Physics.Supports.FirstSegment > n {
		return fmt.Errorf("physics.supports.first_segment %d outside path of %d points", c.Physics.Supports.FirstSegment, n)
	}
	return nil
}

// Defaults returns the configuration used when a key is absent from the file.
func Defaults() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TickRate:      time.Second / 60,
			Seed:          0,
			SpawnPeriod:   3 * time.Second,
			ScaleDuration: 10 * time.Second / 60, // ten frames
			StatsInterval: 10 * time.Second,
		},
		Path: PathConfig{
			File:            "data/yaml/conveyor_path.yaml",
			SpawnParam:      0.99,
			SpawnLift:       mgl32.Vec3{0, 5, 0},
			SpawnIndex:      22,
			PackIndex:       12,
			AdvanceDistance: 2,
			FloorY:          -10,
		},
		Control: ControlConfig{
			Impulse:    0.05,
			PackedLift: mgl32.Vec3{0, 0.5, 0},
		},
		Items: ItemsConfig{
			File:               "data/yaml/item_list.yaml",
			PackedName:         "packed_box",
			PackedHalfExtents:  mgl32.Vec3{0.6, 0.6, 0.6},
			PackedMass:         1,
			BeltDotHalfExtents: mgl32.Vec3{0.1, 0.1, 0.1},
		},
		Physics: PhysicsConfig{
			Gravity:      mgl32.Vec3{0, -9.81, 0},
			RestPosition: mgl32.Vec3{0, -100, 0},
			Raw: PresetConfig{
				LinearDamping:  0.5,
				AngularDamping: 0.5,
				Friction:       0.01,
				Restitution:    0.05,
			},
			Packed: PresetConfig{
				LinearDamping:  0.3,
				AngularDamping: 0.5,
				Friction:       0.01,
				Restitution:    0.05,
			},
			Supports: SupportConfig{
				Enabled:      true,
				FirstSegment: 4,
				Width:        5,
				Thickness:    1,
				Friction:     0.05,
				Restitution:  0.07,
			},
		},
		Belt: BeltConfig{
			DotCount: 40,
			DotRate:  0.0005,
			DotScale: 1,
		},
		Light: LightConfig{
			Enabled: true,
			Base:    1,
			Peak:    3,
			Decay:   4,
		},
		Scripting: ScriptingConfig{
			Dir:   "scripts",
			Watch: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Preview: PreviewConfig{
			Enabled: false,
			Scale:   1.5,
			Every:   4,
		},
	}
}

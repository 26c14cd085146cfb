package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conveyor.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second/60, cfg.Simulation.TickRate)
	assert.Equal(t, float32(-10), cfg.Path.FloorY)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[simulation]
tick_rate = "20ms"
spawn_period = "2s"

[path]
pack_index = 7
spawn_lift = [0.0, 2.5, 0.0]

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, 2*time.Second, cfg.Simulation.SpawnPeriod)
	assert.Equal(t, 7, cfg.Path.PackIndex)
	assert.Equal(t, mgl32.Vec3{0, 2.5, 0}, cfg.Path.SpawnLift)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 22, cfg.Path.SpawnIndex)
	assert.Equal(t, float32(0.05), cfg.Control.Impulse)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[simulation]
tick_rate = "0s"

[path]
spawn_param = 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_rate")
	assert.Contains(t, err.Error(), "spawn_param")
}

func TestLoadRejectsNonFiniteFloats(t *testing.T) {
	path := writeConfig(t, `
[path]
spawn_param = nan

[physics]
gravity = [0.0, -inf, 0.0]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "path.spawn_param must be finite")
	assert.ErrorContains(t, err, "path.spawn_param NaN outside [0,1)")
	assert.ErrorContains(t, err, "physics.gravity[1] must be finite")
}

func TestValidateDotRate(t *testing.T) {
	cfg := Defaults()
	cfg.Belt.DotRate = -0.01
	assert.ErrorContains(t, cfg.Validate(), "belt.dot_rate")

	cfg.Belt.DotRate = math.NaN()
	assert.ErrorContains(t, cfg.Validate(), "belt.dot_rate must be finite")

	cfg.Belt.DotRate = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheckPath(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.CheckPath(24))
	assert.Error(t, cfg.CheckPath(20), "spawn index 22 needs at least 23 points")

	cfg.Path.SpawnIndex = 3
	cfg.Path.PackIndex = -1
	assert.Error(t, cfg.CheckPath(20))
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "conveyor.toml"))
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, cfg.Simulation.TickRate)
	assert.Equal(t, 12, cfg.Path.PackIndex)
}

package data

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// PathPoint is one control point of the conveyor path.
type PathPoint struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

// PathData is the static description of the conveyor spline, exported from
// the modelling tool once and loaded before the world is built.
type PathData struct {
	Closed bool        `yaml:"closed"`
	Points []PathPoint `yaml:"points"`
}

// LoadPath loads conveyor_path.yaml.
func LoadPath(path string) (*PathData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conveyor path: %w", err)
	}
	var d PathData
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse conveyor path: %w", err)
	}
	if len(d.Points) < 2 {
		return nil, fmt.Errorf("conveyor path %s: need at least 2 points, got %d", path, len(d.Points))
	}
	return &d, nil
}

// Vectors converts the control points for the curve package.
func (d *PathData) Vectors() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(d.Points))
	for i, p := range d.Points {
		out[i] = mgl32.Vec3{p.X, p.Y, p.Z}
	}
	return out
}

// Count returns the number of control points.
func (d *PathData) Count() int {
	return len(d.Points)
}

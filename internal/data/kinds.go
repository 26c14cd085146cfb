package data

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// ItemKind describes one raw product geometry travelling on the belt.
type ItemKind struct {
	Name        string     `yaml:"name"`
	Capacity    int        `yaml:"capacity"`     // instances reserved for this kind
	HalfExtents [3]float32 `yaml:"half_extents"` // collider and bounds
	Mass        float32    `yaml:"mass"`
}

// Extents returns the half extents as a vector.
func (k ItemKind) Extents() mgl32.Vec3 {
	return mgl32.Vec3(k.HalfExtents)
}

// KindTable holds the raw item kinds in file order.
type KindTable struct {
	kinds  []ItemKind
	byName map[string]int
}

// LoadKindTable loads item_list.yaml.
func LoadKindTable(path string) (*KindTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item list: %w", err)
	}
	var entries []ItemKind
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse item list: %w", err)
	}
	return NewKindTable(entries)
}

// NewKindTable validates entries and builds the table.
func NewKindTable(entries []ItemKind) (*KindTable, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("item list is empty")
	}
	t := &KindTable{
		kinds:  make([]ItemKind, 0, len(entries)),
		byName: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("item kind without name")
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("item kind %q listed twice", e.Name)
		}
		if e.Capacity <= 0 {
			return nil, fmt.Errorf("item kind %q: capacity must be positive, got %d", e.Name, e.Capacity)
		}
		if e.Mass <= 0 {
			e.Mass = 1
		}
		t.byName[e.Name] = len(t.kinds)
		t.kinds = append(t.kinds, e)
	}
	return t, nil
}

// Kinds returns the kinds in file order.
func (t *KindTable) Kinds() []ItemKind {
	return t.kinds
}

// Get returns the kind with the given name.
func (t *KindTable) Get(name string) (ItemKind, bool) {
	i, ok := t.byName[name]
	if !ok {
		return ItemKind{}, false
	}
	return t.kinds[i], true
}

// Count returns the number of kinds.
func (t *KindTable) Count() int {
	return len(t.kinds)
}

// TotalCapacity is the sum of all kind capacities; the packed pool is sized
// to match it.
func (t *KindTable) TotalCapacity() int {
	n := 0
	for _, k := range t.kinds {
		n += k.Capacity
	}
	return n
}

package world

import "github.com/go-gl/mathgl/mgl32"

// ItemSnapshot is a copy of one raw item's record and the pose of the body
// it currently drives.
type ItemSnapshot struct {
	Slot       int
	Kind       string
	State      State
	PathIndex  int // -1 while free
	PackedSlot int // -1 while unpaired
	Resetting  bool
	Scale      float32
	Position   mgl32.Vec3
	Velocity   mgl32.Vec3
}

// Snapshot is a self-contained copy of the manager state, safe to hand to
// another goroutine.
type Snapshot struct {
	Tick   uint64
	Counts Counts
	Items  []ItemSnapshot // every raw slot, in slot order
}

func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{
		Tick:   m.ticks,
		Counts: m.Counts(),
		Items:  make([]ItemSnapshot, len(m.rawPool.items)),
	}
	for i, it := range m.rawPool.items {
		is := ItemSnapshot{
			Slot:       it.Slot,
			Kind:       m.raw.Kind(it.Slot),
			State:      it.state,
			PathIndex:  -1,
			PackedSlot: -1,
			Resetting:  it.resetting,
			Scale:      it.scale,
		}
		if it.active {
			is.PathIndex = it.pathIndex
			b := m.driven(it)
			is.Position = b.Translation()
			is.Velocity = b.Linvel()
		}
		if it.paired != nil {
			is.PackedSlot = it.paired.Slot
		}
		s.Items[i] = is
	}
	return s
}

// Active returns the snapshots of items that are not free.
func (s Snapshot) Active() []ItemSnapshot {
	var out []ItemSnapshot
	for _, it := range s.Items {
		if it.State != StateFree {
			out = append(out, it)
		}
	}
	return out
}

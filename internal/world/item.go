package world

import (
	"time"
)

// State is where a pooled item is in its life cycle.
type State int

const (
	StateFree            State = iota // parked at rest in the free list
	StateActivating                   // spawned, scaling in, already steering
	StateFollowing                    // steering its own body along the path
	StatePackedFollowing              // raw body parked, steering the paired packed body
	StateDeactivating                 // scaling out after falling below the floor
)

var stateNames = [...]string{"free", "activating", "following", "packed-following", "deactivating"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// tween moves a value from one end to the other over a fixed duration,
// advanced by the frame delta.
type tween struct {
	from     float32
	to       float32
	elapsed  time.Duration
	duration time.Duration
	running  bool
}

func (t *tween) start(from, to float32, d time.Duration) {
	*t = tween{from: from, to: to, duration: d, running: d > 0}
}

// advance steps the tween and returns the eased value and whether it has
// reached its end.
func (t *tween) advance(dt time.Duration, ease func(float32) float32) (float32, bool) {
	if !t.running {
		return t.to, true
	}
	t.elapsed += dt
	if t.elapsed >= t.duration {
		t.running = false
		return t.to, true
	}
	f := float32(t.elapsed) / float32(t.duration)
	return t.from + (t.to-t.from)*ease(f), false
}

// PooledItem is one slot of a raw or packed pool plus its state record.
// Accessed only from the simulation goroutine.
type PooledItem struct {
	Slot int

	state     State
	active    bool
	pathIndex int // valid iff active; raw items only
	paired    *PooledItem
	owner     *PooledItem // packed items: the raw item steering this one
	resetting bool
	scale     float32
	tween     tween

	listPos int // index in the pool list the item currently sits in
}

func (it *PooledItem) State() State        { return it.state }
func (it *PooledItem) Active() bool        { return it.active }
func (it *PooledItem) Resetting() bool     { return it.resetting }
func (it *PooledItem) Scale() float32      { return it.scale }
func (it *PooledItem) Paired() *PooledItem { return it.paired }
func (it *PooledItem) Owner() *PooledItem  { return it.owner }

// PathIndex returns the control point the item steers to; ok is false while
// the item is free. A packed item reports its owner's index.
func (it *PooledItem) PathIndex() (idx int, ok bool) {
	if !it.active {
		return 0, false
	}
	if it.owner != nil {
		return it.owner.pathIndex, true
	}
	return it.pathIndex, true
}

// Pool splits the items of one instanced pool into a free list and an
// active list. Every item is in exactly one of them.
type Pool struct {
	items  []*PooledItem
	free   []*PooledItem
	active []*PooledItem
}

func newPool(capacity int) *Pool {
	p := &Pool{
		items:  make([]*PooledItem, capacity),
		free:   make([]*PooledItem, capacity),
		active: make([]*PooledItem, 0, capacity),
	}
	for i := range p.items {
		it := &PooledItem{Slot: i, pathIndex: -1, listPos: i}
		p.items[i] = it
		p.free[i] = it
	}
	return p
}

func (p *Pool) Capacity() int             { return len(p.items) }
func (p *Pool) FreeCount() int            { return len(p.free) }
func (p *Pool) ActiveCount() int          { return len(p.active) }
func (p *Pool) Item(slot int) *PooledItem { return p.items[slot] }

// take moves it from the free list to the active list.
func (p *Pool) take(it *PooledItem) {
	p.free = removeAt(p.free, it.listPos)
	it.listPos = len(p.active)
	p.active = append(p.active, it)
}

// release moves it from the active list back to the free list.
func (p *Pool) release(it *PooledItem) {
	p.active = removeAt(p.active, it.listPos)
	it.listPos = len(p.free)
	p.free = append(p.free, it)
}

// removeAt swap-removes list[i], fixing the moved item's position.
func removeAt(list []*PooledItem, i int) []*PooledItem {
	last := len(list) - 1
	if i != last {
		list[i] = list[last]
		list[i].listPos = i
	}
	list[last] = nil
	return list[:last]
}

package ecs

// World owns the entity pool, the stores attached to it and a deferred
// destroy queue. A system may retire entities while another is still
// iterating them; CleanupSystem flushes at tick end.
type World struct {
	pool    *EntityPool
	stores  []Removable
	pending []EntityID
}

func NewWorld() *World {
	return &World{
		pool:    NewEntityPool(),
		pending: make([]EntityID, 0, 16),
	}
}

func (w *World) Pool() *EntityPool { return w.pool }

// Register attaches a store; destroyed entities are stripped from it.
func (w *World) Register(store Removable) {
	w.stores = append(w.stores, store)
}

func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues id for the next FlushDestroyQueue. Queuing the
// same id twice is a no-op.
func (w *World) MarkForDestruction(id EntityID) {
	for _, q := range w.pending {
		if q == id {
			return
		}
	}
	w.pending = append(w.pending, id)
}

// Pending reports how many entities wait in the destroy queue.
func (w *World) Pending() int { return len(w.pending) }

// FlushDestroyQueue removes queued entities from every store and retires
// their IDs.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.pending {
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
	}
	w.pending = w.pending[:0]
}

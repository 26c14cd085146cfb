package event

// ItemSpawned fires when the spawn timer (or an explicit Activate call)
// takes a raw item out of the free list.
type ItemSpawned struct {
	Slot int
	Kind string
}

// ItemPacked fires when a raw item reaching the pack point is swapped for a
// packed item.
type ItemPacked struct {
	RawSlot    int
	PackedSlot int
}

// ItemDespawned fires once the scale-out finished and the item is back in
// the free list. PackedSlot is -1 when the item was never packed.
type ItemDespawned struct {
	Slot       int
	PackedSlot int
}

// ScriptsReloaded fires after the tuning scripts were reloaded from disk.
type ScriptsReloaded struct {
	Files int
}

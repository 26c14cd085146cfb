package ecs

// Removable is implemented by every component store so the World can
// strip an entity from all of them at once.
type Removable interface {
	Remove(id EntityID)
}

// Store is a sparse-set component store: a dense slice of values in
// insertion order plus an index map. Iteration order is deterministic,
// which the physics step relies on to stay reproducible between runs.
type Store[T any] struct {
	index map[EntityID]int
	ids   []EntityID
	data  []*T
}

func NewStore[T any](capacity int) *Store[T] {
	return &Store[T]{
		index: make(map[EntityID]int, capacity),
		ids:   make([]EntityID, 0, capacity),
		data:  make([]*T, 0, capacity),
	}
}

// Set inserts or replaces the component for id.
func (s *Store[T]) Set(id EntityID, c *T) {
	if i, ok := s.index[id]; ok {
		s.data[i] = c
		return
	}
	s.index[id] = len(s.data)
	s.ids = append(s.ids, id)
	s.data = append(s.data, c)
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.data[i], true
}

// Remove deletes id keeping the relative order of the remaining entries.
func (s *Store[T]) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	delete(s.index, id)
	copy(s.ids[i:], s.ids[i+1:])
	copy(s.data[i:], s.data[i+1:])
	last := len(s.data) - 1
	s.data[last] = nil
	s.ids = s.ids[:last]
	s.data = s.data[:last]
	for j := i; j < last; j++ {
		s.index[s.ids[j]] = j
	}
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

// Each visits components in insertion order. fn must not add or remove
// entries of this store.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i, c := range s.data {
		fn(s.ids[i], c)
	}
}

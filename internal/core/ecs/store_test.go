package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolRecyclesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	b := p.Create()
	require.False(t, a.IsZero())
	assert.NotEqual(t, a.Index(), b.Index())
	assert.Equal(t, 2, p.Len())

	p.Destroy(a)
	assert.False(t, p.Alive(a))
	assert.Equal(t, 1, p.Len())

	c := p.Create()
	assert.Equal(t, a.Index(), c.Index())
	assert.Equal(t, a.Generation()+1, c.Generation())
	assert.True(t, p.Alive(c))
	assert.False(t, p.Alive(a), "stale handle must not resolve")

	// destroying the stale handle is a no-op
	p.Destroy(a)
	assert.True(t, p.Alive(c))
	assert.False(t, p.Alive(0))
}

func TestStoreKeepsInsertionOrder(t *testing.T) {
	p := NewEntityPool()
	s := NewStore[int](4)
	ids := make([]EntityID, 5)
	for i := range ids {
		ids[i] = p.Create()
		v := i
		s.Set(ids[i], &v)
	}
	s.Remove(ids[1])
	s.Remove(ids[3])

	var got []int
	s.Each(func(_ EntityID, v *int) { got = append(got, *v) })
	assert.Equal(t, []int{0, 2, 4}, got)

	v, ok := s.Get(ids[4])
	require.True(t, ok)
	assert.Equal(t, 4, *v)
	assert.False(t, s.Has(ids[1]))
	assert.Equal(t, 3, s.Len())
}

func TestEach2VisitsIntersection(t *testing.T) {
	p := NewEntityPool()
	names := NewStore[string](4)
	sizes := NewStore[float32](4)
	a, b, c := p.Create(), p.Create(), p.Create()
	na, nb := "a", "b"
	names.Set(a, &na)
	names.Set(b, &nb)
	sb, sc := float32(2), float32(3)
	sizes.Set(b, &sb)
	sizes.Set(c, &sc)

	var seen []string
	Each2(names, sizes, func(id EntityID, n *string, s *float32) {
		seen = append(seen, *n)
		assert.Equal(t, b, id)
		assert.Equal(t, float32(2), *s)
	})
	assert.Equal(t, []string{"b"}, seen)
}

func TestWorldFlushRemovesFromRegisteredStores(t *testing.T) {
	w := NewWorld()
	s := NewStore[int](2)
	w.Register(s)

	id := w.CreateEntity()
	v := 7
	s.Set(id, &v)

	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	assert.Equal(t, 1, w.Pending())
	assert.True(t, w.Alive(id))

	w.FlushDestroyQueue()
	assert.False(t, w.Alive(id))
	assert.False(t, s.Has(id))
	assert.Equal(t, 0, w.Pending())
}

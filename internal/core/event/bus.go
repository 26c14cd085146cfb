package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during tick N are
// delivered during tick N+1 when EventDispatchSystem calls SwapBuffers and
// DispatchAll. Emit and dispatch happen on the simulation goroutine only.
type Bus struct {
	mu     sync.Mutex // guards topic creation; subscriptions happen at setup
	topics map[reflect.Type]topic
	order  []topic
}

// topic is the type-erased view of a typed queue.
type topic interface {
	swap()
	dispatch()
	pending() int
}

type queue[T any] struct {
	front    []T
	back     []T
	handlers []func(T)
}

func (q *queue[T]) swap() {
	q.front, q.back = q.back, q.front[:0]
}

func (q *queue[T]) dispatch() {
	for _, ev := range q.front {
		for _, h := range q.handlers {
			h(ev)
		}
	}
}

func (q *queue[T]) pending() int { return len(q.back) }

func NewBus() *Bus {
	return &Bus{
		topics: make(map[reflect.Type]topic),
	}
}

func topicFor[T any](b *Bus) *queue[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.topics[t]; ok {
		return q.(*queue[T])
	}
	q := &queue[T]{}
	b.topics[t] = q
	b.order = append(b.order, q)
	return q
}

// Emit queues an event into the back buffer. A nil bus drops the event.
func Emit[T any](b *Bus, event T) {
	if b == nil {
		return
	}
	q := topicFor[T](b)
	q.back = append(q.back, event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	q := topicFor[T](b)
	q.handlers = append(q.handlers, fn)
}

// SwapBuffers rotates back -> front and empties the new back buffer.
func (b *Bus) SwapBuffers() {
	for _, q := range b.order {
		q.swap()
	}
}

// DispatchAll delivers every front-buffer event, topic by topic in the
// order topics were first used.
func (b *Bus) DispatchAll() {
	for _, q := range b.order {
		q.dispatch()
	}
}

// Pending counts events queued for the next dispatch.
func (b *Bus) Pending() int {
	n := 0
	for _, q := range b.order {
		n += q.pending()
	}
	return n
}

package session

import "sync"

// collection is an ordered list of records keyed by id.
type collection[T any] struct {
	items []T
	idOf  func(T) string
}

func (c *collection[T]) index(id string) int {
	for i, it := range c.items {
		if c.idOf(it) == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// put replaces the record with the same id or appends it.
func (c *collection[T]) put(item T) {
	if i := c.index(c.idOf(item)); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

// replace swaps the record stored under id for item, keeping its position.
func (c *collection[T]) replace(id string, item T) {
	if i := c.index(id); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = append(c.items, item)
}

func (c *collection[T]) remove(id string) (T, int, bool) {
	i := c.index(id)
	if i < 0 {
		var zero T
		return zero, -1, false
	}
	item := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return item, i, true
}

func (c *collection[T]) insert(at int, item T) {
	if at < 0 || at > len(c.items) {
		c.items = append(c.items, item)
		return
	}
	c.items = append(c.items, item)
	copy(c.items[at+1:], c.items[at:])
	c.items[at] = item
}

func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) reset(items []T) {
	c.items = append([]T(nil), items...)
}

// serializer runs operations on the same record one at a time, in the order
// they were submitted.
type serializer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newSerializer() *serializer {
	return &serializer{tails: make(map[string]chan struct{})}
}

// enter blocks until every earlier operation on id has finished. The
// returned release must be called exactly once.
func (q *serializer) enter(done <-chan struct{}, id string) (release func(), ok bool) {
	q.mu.Lock()
	prev := q.tails[id]
	mine := make(chan struct{})
	q.tails[id] = mine
	q.mu.Unlock()

	release = func() {
		q.mu.Lock()
		if q.tails[id] == mine {
			delete(q.tails, id)
		}
		q.mu.Unlock()
		close(mine)
	}

	if prev == nil {
		return release, true
	}
	select {
	case <-prev:
		return release, true
	case <-done:
		// Keep the chain intact for whoever queued behind us.
		go func() {
			<-prev
			release()
		}()
		return nil, false
	}
}

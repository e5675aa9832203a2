package queue

import "sync"

// Base message queue.
type queue struct {
	h, t *Item
	sync.Mutex
}

// Lookup holds messages awaiting one kind of acknowledgment,
// keyed by packet identifier and kept in the order they were added.
type Lookup struct {
	queue
	lookup map[uint16]*Item
}

// NewLookup returns an empty table.
func NewLookup() *Lookup {
	return &Lookup{lookup: make(map[uint16]*Item)}
}

func (q *queue) add(i *Item) {
	if q.h == nil {
		q.h = i
		q.t = i
	} else {
		q.t.next = i
		i.prev = q.t
		q.t = i
	}
}

func (q *queue) remove(i *Item) {
	if i.prev == nil { // is h
		q.h = i.next
	} else {
		i.prev.next = i.next
	}

	if i.next == nil { // is t
		q.t = i.prev
	} else {
		i.next.prev = i.prev
	}

	i.prev, i.next = nil, nil // avoid memory leaks
}

// Add inserts i unless its packet identifier is already present,
// in which case the existing entry is kept and false returned.
func (q *Lookup) Add(i *Item) bool {
	q.Lock()
	defer q.Unlock()

	if _, ok := q.lookup[i.PId]; ok {
		return false
	}
	q.add(i)
	q.lookup[i.PId] = i
	return true
}

// Remove deletes and returns the entry for id, or nil if there is none.
func (q *Lookup) Remove(id uint16) *Item {
	q.Lock()
	if i, ok := q.lookup[id]; ok {
		q.remove(i)
		delete(q.lookup, id)
		q.Unlock()
		return i
	}
	q.Unlock()
	return nil
}

// Present checks if id is awaiting acknowledgment.
func (q *Lookup) Present(id uint16) bool {
	q.Lock()
	_, ok := q.lookup[id]
	q.Unlock()
	return ok
}

func (q *Lookup) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.lookup)
}

// ForEach visits entries oldest first. f must not modify the table.
func (q *Lookup) ForEach(f func(*Item)) {
	q.Lock()
	for i := q.h; i != nil; i = i.next {
		f(i)
	}
	q.Unlock()
}

func (q *Lookup) Reset() {
	q.Lock()
	for id, i := range q.lookup {
		q.remove(i)
		delete(q.lookup, id)
	}
	q.h, q.t = nil, nil
	q.Unlock()
}

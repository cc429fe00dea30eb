package state

// Collection is an ordered set of records of one type, unique by key.
// Record pointers handed out stay valid across refreshes: reconciling a
// new snapshot overwrites existing records in place.
type Collection[T any] struct {
	name  string
	key   func(*T) string
	items []*T
	index map[string]int
}

func newCollection[T any](name string, key func(*T) string) *Collection[T] {
	return &Collection[T]{name: name, key: key, index: map[string]int{}}
}

// Name returns the collection's storage key.
func (c *Collection[T]) Name() string {
	return c.name
}

// Key returns the identity key of record.
func (c *Collection[T]) Key(record *T) string {
	return c.key(record)
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the record slice. The records are shared.
func (c *Collection[T]) Items() []*T {
	out := make([]*T, len(c.items))
	copy(out, c.items)
	return out
}

// At returns the record at position i, or nil when out of range.
func (c *Collection[T]) At(i int) *T {
	if i < 0 || i >= len(c.items) {
		return nil
	}
	return c.items[i]
}

// Get returns the record with identity key.
func (c *Collection[T]) Get(key string) (*T, bool) {
	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	return c.items[i], true
}

// Find returns the first record satisfying cond.
func (c *Collection[T]) Find(cond func(*T) bool) *T {
	if i := c.FindIndex(cond); i >= 0 {
		return c.items[i]
	}
	return nil
}

// FindIndex returns the position of the first record satisfying cond, or -1.
func (c *Collection[T]) FindIndex(cond func(*T) bool) int {
	for i, item := range c.items {
		if cond(item) {
			return i
		}
	}
	return -1
}

// Append adds record unless a record with the same key exists.
func (c *Collection[T]) Append(record *T) bool {
	if record == nil {
		return false
	}
	key := c.key(record)
	if _, exists := c.index[key]; exists {
		return false
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, record)
	return true
}

// Remove deletes the record with identity key.
func (c *Collection[T]) Remove(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	return c.RemoveAt(i)
}

// RemoveAt deletes the record at position i.
func (c *Collection[T]) RemoveAt(i int) bool {
	if i < 0 || i >= len(c.items) {
		return false
	}
	delete(c.index, c.key(c.items[i]))
	copy(c.items[i:], c.items[i+1:])
	c.items[len(c.items)-1] = nil
	c.items = c.items[:len(c.items)-1]
	for j := i; j < len(c.items); j++ {
		c.index[c.key(c.items[j])] = j
	}
	return true
}

// Replace overwrites the stored record with the same key as record,
// keeping the stored pointer.
func (c *Collection[T]) Replace(record *T) bool {
	if record == nil {
		return false
	}
	existing, ok := c.Get(c.key(record))
	if !ok {
		return false
	}
	if existing != record {
		*existing = *record
	}
	return true
}

// Reconcile makes the collection equal to snapshot, in snapshot order.
// Records whose key is already present are overwritten in place; others
// are appended; records missing from snapshot are dropped. Duplicate keys
// in snapshot keep their first occurrence.
func (c *Collection[T]) Reconcile(snapshot []T) {
	next := make([]*T, 0, len(snapshot))
	index := make(map[string]int, len(snapshot))
	for i := range snapshot {
		fresh := snapshot[i]
		key := c.key(&fresh)
		if _, dup := index[key]; dup {
			continue
		}
		record, ok := c.Get(key)
		if ok {
			*record = fresh
		} else {
			record = &fresh
		}
		index[key] = len(next)
		next = append(next, record)
	}

	previous := len(c.items)
	c.items = append(c.items[:0], next...)
	if len(c.items) < previous {
		clear(c.items[len(c.items):previous])
	}
	c.index = index
}

package orchestrator

// collection is an ordered set of entities keyed by id, with the revision
// bookkeeping that lets the newest-issued operation win regardless of the
// order in which bridge answers come back.
//
// Every operation takes a sequence number from Store.begin when it is issued.
// Entity writes stamp rev[id]; removals stamp tomb[id]. A write carrying a
// sequence older than the stamp is dropped. Listings do not stamp entities,
// they only skip ids touched after the listing was issued.
type collection[T any] struct {
	items   []T
	key     func(T) int64
	rev     map[int64]uint64
	tomb    map[int64]uint64
	listSeq uint64
	loaded  bool
}

func newCollection[T any](key func(T) int64) collection[T] {
	return collection[T]{
		key:  key,
		rev:  make(map[int64]uint64),
		tomb: make(map[int64]uint64),
	}
}

// replace merges a full listing issued at seq. Entries written locally after
// seq keep their local value; entries created locally after seq and not yet in
// the listing stay in front.
func (c *collection[T]) replace(seq uint64, incoming []T) bool {
	if seq < c.listSeq {
		return false
	}
	c.listSeq = seq

	local := make(map[int64]T, len(c.items))
	for _, it := range c.items {
		local[c.key(it)] = it
	}
	seen := make(map[int64]bool, len(incoming))
	merged := make([]T, 0, len(incoming))
	for _, it := range incoming {
		id := c.key(it)
		if seen[id] {
			continue
		}
		seen[id] = true
		if c.tomb[id] > seq {
			continue
		}
		if c.rev[id] > seq {
			if cur, ok := local[id]; ok {
				merged = append(merged, cur)
			}
			continue
		}
		merged = append(merged, it)
	}

	var fresh []T
	for _, it := range c.items {
		id := c.key(it)
		if seen[id] || c.rev[id] <= seq {
			continue
		}
		fresh = append(fresh, it)
	}
	c.items = append(fresh, merged...)
	c.loaded = true
	return true
}

// put inserts or replaces one entity. An accepted write counts as known
// state, so a later failed listing keeps it instead of the fallback snapshot.
func (c *collection[T]) put(seq uint64, item T, prepend bool) bool {
	id := c.key(item)
	if c.rev[id] > seq || c.tomb[id] > seq {
		return false
	}
	c.rev[id] = seq
	c.loaded = true
	for i := range c.items {
		if c.key(c.items[i]) == id {
			c.items[i] = item
			return true
		}
	}
	if prepend {
		c.items = append([]T{item}, c.items...)
	} else {
		c.items = append(c.items, item)
	}
	return true
}

// modify applies fn to the entity with id.
func (c *collection[T]) modify(seq uint64, id int64, fn func(*T)) bool {
	if c.rev[id] > seq {
		return false
	}
	for i := range c.items {
		if c.key(c.items[i]) == id {
			fn(&c.items[i])
			c.rev[id] = seq
			return true
		}
	}
	return false
}

// remove drops the entity. An acknowledged delete always applies.
func (c *collection[T]) remove(seq uint64, id int64) bool {
	if c.tomb[id] < seq {
		c.tomb[id] = seq
	}
	for i := range c.items {
		if c.key(c.items[i]) == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *collection[T]) get(id int64) (T, bool) {
	for _, it := range c.items {
		if c.key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) maxID() int64 {
	var hi int64
	for _, it := range c.items {
		if id := c.key(it); id > hi {
			hi = id
		}
	}
	return hi
}

func (c *collection[T]) snapshot() []T {
	return append([]T(nil), c.items...)
}

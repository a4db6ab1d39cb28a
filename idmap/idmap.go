// Package idmap implements the identity-keyed lookup used by every Table to
// keep O(1) membership checks next to an insertion-ordered slice of rows.
package idmap

// IdMap is a hash map from an integer id to a value of type V. It mirrors
// htop's Hashtable: put replaces any prior entry for that id, and an "owner"
// flag (set via WithOwner) decides whether Remove/Clear invoke a release
// hook on the outgoing value before dropping it.
type IdMap[V any] struct {
	entries map[int]V
	owner   bool
	release func(V)
}

// New creates an empty IdMap. sizeHint is advisory capacity, mirroring
// htop's Hashtable_new(n, owner) bucket-count hint; it does not bound the
// map's growth.
func New[V any](sizeHint int) *IdMap[V] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &IdMap[V]{entries: make(map[int]V, sizeHint)}
}

// WithOwner marks this map as owning its values: Remove and Clear call
// release on any value they evict. Matches htop's Hashtable "owner" flag,
// which frees the payload on removal when set.
func (m *IdMap[V]) WithOwner(release func(V)) *IdMap[V] {
	m.owner = true
	m.release = release
	return m
}

// Put inserts or replaces the entry for id.
func (m *IdMap[V]) Put(id int, v V) {
	if m.owner && m.release != nil {
		if old, ok := m.entries[id]; ok {
			m.release(old)
		}
	}
	m.entries[id] = v
}

// Get returns the value for id and whether it was present.
func (m *IdMap[V]) Get(id int) (V, bool) {
	v, ok := m.entries[id]
	return v, ok
}

// Remove deletes the entry for id, releasing it first if this map owns its
// values.
func (m *IdMap[V]) Remove(id int) {
	if m.owner && m.release != nil {
		if old, ok := m.entries[id]; ok {
			m.release(old)
		}
	}
	delete(m.entries, id)
}

// Clear empties the map, releasing every value first if owned.
func (m *IdMap[V]) Clear() {
	if m.owner && m.release != nil {
		for _, v := range m.entries {
			m.release(v)
		}
	}
	m.entries = make(map[int]V, len(m.entries))
}

// Count returns the number of entries.
func (m *IdMap[V]) Count() int {
	return len(m.entries)
}

// Foreach calls fn for every entry. It tolerates fn mutating the value in
// place (since V is typically a pointer) but, like htop's Hashtable_foreach,
// does not tolerate fn structurally mutating the map (Put/Remove) during
// the traversal.
func (m *IdMap[V]) Foreach(fn func(id int, v V)) {
	for id, v := range m.entries {
		fn(id, v)
	}
}

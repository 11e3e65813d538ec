// Package sparse provides a sparse set of small integers with O(1) insert,
// remove, membership and clear. The analyzer uses it to mark tree nodes
// during recursive walks over call graphs, where a node may be reached
// again through a subroutine call.
package sparse

// Set is a set of uint32 values below a growable capacity.
//
// The dense slice holds the members in insertion order; sparse maps a value
// to its index in dense. Stale sparse entries are harmless because a
// membership test cross-checks dense.
type Set struct {
	sparse []uint32
	dense  []uint32
}

// New returns an empty set that accepts values below capacity.
func New(capacity uint32) *Set {
	return &Set{
		sparse: make([]uint32, capacity),
		dense:  make([]uint32, 0, capacity),
	}
}

// Cap returns the exclusive upper bound of storable values.
func (s *Set) Cap() uint32 {
	//nolint:gosec // G115: capacity was given as uint32
	return uint32(len(s.sparse))
}

// Grow raises the capacity to at least capacity.
func (s *Set) Grow(capacity uint32) {
	if capacity <= s.Cap() {
		return
	}
	sp := make([]uint32, capacity)
	copy(sp, s.sparse)
	s.sparse = sp
}

// Insert adds v and reports whether it was absent. Values at or above the
// capacity grow the set.
func (s *Set) Insert(v uint32) bool {
	if s.Contains(v) {
		return false
	}
	if v >= s.Cap() {
		s.Grow(v*2 + 1)
	}
	//nolint:gosec // G115: dense never exceeds the uint32 capacity
	s.sparse[v] = uint32(len(s.dense))
	s.dense = append(s.dense, v)
	return true
}

// Contains reports whether v is in the set.
func (s *Set) Contains(v uint32) bool {
	if v >= s.Cap() {
		return false
	}
	i := s.sparse[v]
	return int(i) < len(s.dense) && s.dense[i] == v
}

// Remove deletes v if present. The last member takes its dense slot.
func (s *Set) Remove(v uint32) {
	if !s.Contains(v) {
		return
	}
	i := s.sparse[v]
	last := s.dense[len(s.dense)-1]
	s.dense[i] = last
	s.sparse[last] = i
	s.dense = s.dense[:len(s.dense)-1]
}

// Clear empties the set without touching the sparse array.
func (s *Set) Clear() {
	s.dense = s.dense[:0]
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.dense)
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return len(s.dense) == 0
}

// Values returns the members in insertion order. The slice is valid until
// the next mutation.
func (s *Set) Values() []uint32 {
	return s.dense
}

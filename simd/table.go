package simd

// ByteSet is a set of bytes prepared for scanning. Sets of up to three
// bytes scan with memchr; larger sets use the table.
type ByteSet struct {
	table   [256]bool
	needles []byte
}

// NewByteSet builds a ByteSet from a membership table.
func NewByteSet(table *[256]bool) *ByteSet {
	s := &ByteSet{table: *table}
	for c, on := range table {
		if on {
			s.needles = append(s.needles, byte(c))
		}
	}
	if len(s.needles) > 3 {
		s.needles = nil
	}
	return s
}

// Len returns the number of bytes scanned with memchr, or 0 when the set
// scans with its table.
func (s *ByteSet) Len() int {
	return len(s.needles)
}

// Contains reports whether c is in the set.
func (s *ByteSet) Contains(c byte) bool {
	return s.table[c]
}

// Index returns the index of the first byte of haystack in the set, or -1.
func (s *ByteSet) Index(haystack []byte) int {
	switch n := s.needles; len(n) {
	case 1:
		return Memchr(haystack, n[0])
	case 2:
		return Memchr2(haystack, n[0], n[1])
	case 3:
		return Memchr3(haystack, n[0], n[1], n[2])
	}
	return MemchrInTable(haystack, &s.table)
}

// LastIndex returns the index of the last byte of haystack in the set, or
// -1.
func (s *ByteSet) LastIndex(haystack []byte) int {
	switch n := s.needles; len(n) {
	case 1:
		return Memrchr(haystack, n[0])
	case 2:
		return Memrchr2(haystack, n[0], n[1])
	}
	return MemrchrInTable(haystack, &s.table)
}

// MemchrInTable returns the index of the first byte c of haystack with
// table[c] set, or -1.
func MemchrInTable(haystack []byte, table *[256]bool) int {
	i := 0
	for ; i+4 <= len(haystack); i += 4 {
		switch {
		case table[haystack[i]]:
			return i
		case table[haystack[i+1]]:
			return i + 1
		case table[haystack[i+2]]:
			return i + 2
		case table[haystack[i+3]]:
			return i + 3
		}
	}
	for ; i < len(haystack); i++ {
		if table[haystack[i]] {
			return i
		}
	}
	return -1
}

// MemrchrInTable returns the index of the last byte c of haystack with
// table[c] set, or -1.
func MemrchrInTable(haystack []byte, table *[256]bool) int {
	for i := len(haystack) - 1; i >= 0; i-- {
		if table[haystack[i]] {
			return i
		}
	}
	return -1
}

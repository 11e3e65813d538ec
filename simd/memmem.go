package simd

import "bytes"

// Memmem returns the index of the first needle in haystack, or -1. An
// empty needle matches at 0.
//
// Candidates are found by scanning for the rarest needle byte and then
// verified in place.
func Memmem(haystack, needle []byte) int {
	switch n := len(needle); {
	case n == 0:
		return 0
	case n > len(haystack):
		return -1
	case n == 1:
		return Memchr(haystack, needle[0])
	}
	rare, ri := RareByte(needle)
	n := len(needle)
	for from := ri; from <= len(haystack)-n+ri; {
		i := Memchr(haystack[from:len(haystack)-n+ri+1], rare)
		if i < 0 {
			return -1
		}
		start := from + i - ri
		if bytes.Equal(haystack[start:start+n], needle) {
			return start
		}
		from += i + 1
	}
	return -1
}

// LastMemmem returns the index of the last needle in haystack, or -1. An
// empty needle matches at len(haystack).
func LastMemmem(haystack, needle []byte) int {
	switch n := len(needle); {
	case n == 0:
		return len(haystack)
	case n > len(haystack):
		return -1
	case n == 1:
		return Memrchr(haystack, needle[0])
	}
	rare, ri := RareByte(needle)
	n := len(needle)
	for to := len(haystack) - n + ri + 1; to > ri; {
		i := Memrchr(haystack[ri:to], rare)
		if i < 0 {
			return -1
		}
		start := i
		if bytes.Equal(haystack[start:start+n], needle) {
			return start
		}
		to = ri + i
	}
	return -1
}

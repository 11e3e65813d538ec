// Package simd provides the byte scanning primitives used by the search
// algorithms: single and multi-byte memchr, table-driven class scans and
// substring search, in both directions.
//
// Single-byte scans use the runtime's vectorized IndexByte where the CPU
// has a vector unit; multi-byte scans use SWAR (SIMD within a register)
// over 8-byte words.
package simd

import (
	"bytes"
	"encoding/binary"
	"math/bits"

	"golang.org/x/sys/cpu"
)

// hasVector reports whether the runtime's IndexByte runs on vector
// instructions on this CPU.
var hasVector = cpu.X86.HasSSE42 || cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD

const (
	lo8 = 0x0101010101010101
	hi8 = 0x8080808080808080
)

// zeroBytes returns a word with the high bit set in every zero byte of v.
// Bits above the first zero byte may be spurious; callers only use the
// lowest set bit.
func zeroBytes(v uint64) uint64 {
	return (v - lo8) & ^v & hi8
}

// Memchr returns the index of the first needle in haystack, or -1.
func Memchr(haystack []byte, needle byte) int {
	if hasVector {
		return bytes.IndexByte(haystack, needle)
	}
	return memchrSWAR(haystack, needle)
}

func memchrSWAR(haystack []byte, needle byte) int {
	m := uint64(needle) * lo8
	i := 0
	for ; i+8 <= len(haystack); i += 8 {
		if z := zeroBytes(binary.LittleEndian.Uint64(haystack[i:]) ^ m); z != 0 {
			return i + bits.TrailingZeros64(z)/8
		}
	}
	for ; i < len(haystack); i++ {
		if haystack[i] == needle {
			return i
		}
	}
	return -1
}

// Memchr2 returns the index of the first n1 or n2 in haystack, or -1.
func Memchr2(haystack []byte, n1, n2 byte) int {
	m1, m2 := uint64(n1)*lo8, uint64(n2)*lo8
	i := 0
	for ; i+8 <= len(haystack); i += 8 {
		w := binary.LittleEndian.Uint64(haystack[i:])
		if z := zeroBytes(w^m1) | zeroBytes(w^m2); z != 0 {
			return i + bits.TrailingZeros64(z)/8
		}
	}
	for ; i < len(haystack); i++ {
		if c := haystack[i]; c == n1 || c == n2 {
			return i
		}
	}
	return -1
}

// Memchr3 returns the index of the first n1, n2 or n3 in haystack, or -1.
func Memchr3(haystack []byte, n1, n2, n3 byte) int {
	m1, m2, m3 := uint64(n1)*lo8, uint64(n2)*lo8, uint64(n3)*lo8
	i := 0
	for ; i+8 <= len(haystack); i += 8 {
		w := binary.LittleEndian.Uint64(haystack[i:])
		if z := zeroBytes(w^m1) | zeroBytes(w^m2) | zeroBytes(w^m3); z != 0 {
			return i + bits.TrailingZeros64(z)/8
		}
	}
	for ; i < len(haystack); i++ {
		if c := haystack[i]; c == n1 || c == n2 || c == n3 {
			return i
		}
	}
	return -1
}

// Memrchr returns the index of the last needle in haystack, or -1.
func Memrchr(haystack []byte, needle byte) int {
	return bytes.LastIndexByte(haystack, needle)
}

// Memrchr2 returns the index of the last n1 or n2 in haystack, or -1.
func Memrchr2(haystack []byte, n1, n2 byte) int {
	m1, m2 := uint64(n1)*lo8, uint64(n2)*lo8
	i := len(haystack)
	for ; i >= 8; i -= 8 {
		w := binary.LittleEndian.Uint64(haystack[i-8:])
		if z := exactZeroBytes(w^m1) | exactZeroBytes(w^m2); z != 0 {
			return i - 8 + (63-bits.LeadingZeros64(z))/8
		}
	}
	for i--; i >= 0; i-- {
		if c := haystack[i]; c == n1 || c == n2 {
			return i
		}
	}
	return -1
}

// exactZeroBytes is zeroBytes without spurious bits, for scans that use
// the highest set bit.
func exactZeroBytes(v uint64) uint64 {
	const lo7 = 0x7f7f7f7f7f7f7f7f
	return ^((v&lo7)+lo7 | v | lo7)
}

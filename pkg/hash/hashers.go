package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// HashFunc produces a 64-bit digest for a key. The table routes keys using
// the low 32 bits of this digest.
type HashFunc func(key int64) uint64

// Comparator imposes a total order over keys: negative if a < b, zero if
// a == b, positive if a > b.
type Comparator func(a, b int64) int

// DefaultComparator orders keys numerically.
func DefaultComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func keyBytes(key int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(key))
	return buf
}

// MurmurHasher returns the MurmurHash3 digest of the given key.
func MurmurHasher(key int64) uint64 {
	return murmur3.Sum64(keyBytes(key))
}

// XxHasher returns the xxHash digest of the given key.
func XxHasher(key int64) uint64 {
	return xxhash.Sum64(keyBytes(key))
}

package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Size of a marshalled entry: an 8-byte key followed by an 8-byte value.
const (
	KeySize   = 8
	ValueSize = 8
	EntrySize = KeySize + ValueSize
)

// Entry is a key-value pair stored in a hash bucket page.
type Entry struct {
	Key   int64
	Value int64
}

// New constructs an Entry with the specified key and value.
func New(key int64, value int64) Entry {
	return Entry{Key: key, Value: value}
}

// Marshal writes the entry into buf, which must hold EntrySize bytes.
// Both fields are fixed-width little-endian so entries pack at a fixed
// stride inside a bucket page.
func (entry Entry) Marshal(buf []byte) {
	binary.LittleEndian.PutUint64(buf[:KeySize], uint64(entry.Key))
	binary.LittleEndian.PutUint64(buf[KeySize:EntrySize], uint64(entry.Value))
}

// Unmarshal decodes an entry from the first EntrySize bytes of data.
func Unmarshal(data []byte) Entry {
	return Entry{
		Key:   int64(binary.LittleEndian.Uint64(data[:KeySize])),
		Value: int64(binary.LittleEndian.Uint64(data[KeySize:EntrySize])),
	}
}

// Print writes the entry to the specified writer in the format
// "(<key>, <value>), ", trailing separator included.
func (entry Entry) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d), ", entry.Key, entry.Value)
}

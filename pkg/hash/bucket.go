package hash

import (
	"encoding/binary"
	"fmt"
	"io"

	"hashdb/pkg/entry"
	"hashdb/pkg/pager"
)

// bucketPage views a page as a hash bucket: a live count, a max size fixed
// at creation, and a packed array of entries. Keys are unique; order is
// insertion order up to deletions. The page carries no concurrency state;
// all mutations assume the caller holds an exclusive guard.
type bucketPage struct {
	page *pager.Page
}

// bucketFromPage interprets the given page as a bucket page. The caller
// must hold a guard on the page.
func bucketFromPage(page *pager.Page) *bucketPage {
	return &bucketPage{page: page}
}

// Init formats the page as an empty bucket holding up to maxSize entries.
func (bucket *bucketPage) Init(maxSize uint32) {
	bucket.setSize(0)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, maxSize)
	bucket.page.Update(buf, BUCKET_MAX_SIZE_OFFSET, 4)
}

// Size returns the number of live entries.
func (bucket *bucketPage) Size() uint32 {
	return binary.LittleEndian.Uint32(bucket.page.GetData()[BUCKET_SIZE_OFFSET:])
}

// MaxSize returns the bucket's entry capacity.
func (bucket *bucketPage) MaxSize() uint32 {
	return binary.LittleEndian.Uint32(bucket.page.GetData()[BUCKET_MAX_SIZE_OFFSET:])
}

// IsFull reports whether the bucket has no room for another entry.
func (bucket *bucketPage) IsFull() bool {
	return bucket.Size() >= bucket.MaxSize()
}

// IsEmpty reports whether the bucket holds no entries.
func (bucket *bucketPage) IsEmpty() bool {
	return bucket.Size() == 0
}

func (bucket *bucketPage) setSize(size uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, size)
	bucket.page.Update(buf, BUCKET_SIZE_OFFSET, 4)
}

func entryPos(idx uint32) int64 {
	return BUCKET_ARRAY_OFFSET + int64(idx)*entry.EntrySize
}

// EntryAt returns the entry at the given index.
func (bucket *bucketPage) EntryAt(idx uint32) entry.Entry {
	pos := entryPos(idx)
	return entry.Unmarshal(bucket.page.GetData()[pos : pos+entry.EntrySize])
}

// KeyAt returns the key of the entry at the given index.
func (bucket *bucketPage) KeyAt(idx uint32) int64 {
	return bucket.EntryAt(idx).Key
}

func (bucket *bucketPage) writeEntry(idx uint32, e entry.Entry) {
	buf := make([]byte, entry.EntrySize)
	e.Marshal(buf)
	bucket.page.Update(buf, entryPos(idx), entry.EntrySize)
}

// Lookup scans for the given key, returning its value if present.
func (bucket *bucketPage) Lookup(key int64, cmp Comparator) (int64, bool) {
	for i := uint32(0); i < bucket.Size(); i++ {
		e := bucket.EntryAt(i)
		if cmp(e.Key, key) == 0 {
			return e.Value, true
		}
	}
	return 0, false
}

// Insert appends a key-value pair. Returns false if the key is already
// present or the bucket is full.
func (bucket *bucketPage) Insert(key int64, value int64, cmp Comparator) bool {
	if _, found := bucket.Lookup(key, cmp); found {
		return false
	}
	size := bucket.Size()
	if size >= bucket.MaxSize() {
		return false
	}
	bucket.writeEntry(size, entry.New(key, value))
	bucket.setSize(size + 1)
	return true
}

// Remove deletes the entry with the given key by overwriting its slot with
// the last entry. Returns false if the key is absent.
func (bucket *bucketPage) Remove(key int64, cmp Comparator) bool {
	size := bucket.Size()
	for i := uint32(0); i < size; i++ {
		if cmp(bucket.KeyAt(i), key) == 0 {
			if i != size-1 {
				bucket.writeEntry(i, bucket.EntryAt(size-1))
			}
			bucket.setSize(size - 1)
			return true
		}
	}
	return false
}

// Clear drops all entries.
func (bucket *bucketPage) Clear() {
	bucket.setSize(0)
}

// Print writes a string representation of this bucket and its entries to
// the specified writer.
func (bucket *bucketPage) Print(w io.Writer) {
	fmt.Fprintf(w, "bucket pn=%d size=%d/%d\nentries: ", bucket.page.GetPageNum(), bucket.Size(), bucket.MaxSize())
	for i := uint32(0); i < bucket.Size(); i++ {
		bucket.EntryAt(i).Print(w)
	}
	io.WriteString(w, "\n")
}

package hash

import (
	"fmt"
	"io"

	"hashdb/pkg/concurrency"
	"hashdb/pkg/entry"
	"hashdb/pkg/pager"
)

// A HashTable is a disk-backed index using three-level extendible hashing:
// a header page routes the top bits of a key's digest to a directory page,
// the directory routes the low bits to a bucket page, and buckets hold the
// entries. The table grows and shrinks as buckets fill and empty.
//
// The table itself holds no lock; every operation latches the pages it
// touches top-down through buffer pool guards, never releasing a parent
// before its child is latched. GetValue holds at most two latches at once;
// Insert and Remove hold a third while they install a new directory (header,
// directory, bucket) or split or merge (directory, bucket, sibling bucket).
type HashTable struct {
	name              string
	pool              *pager.BufferPool
	cmp               Comparator
	hashFn            HashFunc
	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32
	headerPageId      int64
}

// NewHashTable creates a fresh table, allocating and formatting its header
// page.
func NewHashTable(name string, pool *pager.BufferPool, cmp Comparator, hashFn HashFunc,
	headerMaxDepth uint32, directoryMaxDepth uint32, bucketMaxSize uint32) (*HashTable, error) {
	table := &HashTable{
		name:              name,
		pool:              pool,
		cmp:               cmp,
		hashFn:            hashFn,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
	}
	headerGuard, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	defer headerGuard.Release()
	headerFromPage(headerGuard.GetPage()).Init(headerMaxDepth)
	table.headerPageId = headerGuard.GetPageNum()
	return table, nil
}

// OpenHashTable attaches to a table previously created in the pool's
// backing file. The depth and size parameters must match the ones the
// table was created with.
func OpenHashTable(name string, pool *pager.BufferPool, cmp Comparator, hashFn HashFunc,
	headerPageId int64, headerMaxDepth uint32, directoryMaxDepth uint32, bucketMaxSize uint32) *HashTable {
	return &HashTable{
		name:              name,
		pool:              pool,
		cmp:               cmp,
		hashFn:            hashFn,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
		headerPageId:      headerPageId,
	}
}

// GetName returns the index name.
func (table *HashTable) GetName() string {
	return table.name
}

// GetPool returns the buffer pool backing this table.
func (table *HashTable) GetPool() *pager.BufferPool {
	return table.pool
}

// GetHeaderPageId returns the pagenum of the table's header page.
func (table *HashTable) GetHeaderPageId() int64 {
	return table.headerPageId
}

// hash routes through the low 32 bits of the key's 64-bit digest.
func (table *HashTable) hash(key int64) uint32 {
	return uint32(table.hashFn(key))
}

// GetValue looks up the value stored under the given key. The transaction
// handle is passed through unused.
func (table *HashTable) GetValue(key int64, _ *concurrency.Transaction) (int64, bool) {
	hash := table.hash(key)
	headerGuard, err := table.pool.FetchPageRead(table.headerPageId)
	if err != nil {
		return 0, false
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	directoryPageId := header.GetDirectoryPageId(header.HashToDirectoryIndex(hash))
	if directoryPageId == INVALID_PAGE_ID {
		return 0, false
	}
	directoryGuard, err := table.pool.FetchPageRead(directoryPageId)
	if err != nil {
		return 0, false
	}
	defer directoryGuard.Release()
	headerGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())
	bucketPageId := directory.GetBucketPageId(directory.HashToBucketIndex(hash))
	if bucketPageId == INVALID_PAGE_ID {
		return 0, false
	}
	bucketGuard, err := table.pool.FetchPageRead(bucketPageId)
	if err != nil {
		return 0, false
	}
	defer bucketGuard.Release()
	directoryGuard.Release()
	return bucketFromPage(bucketGuard.GetPage()).Lookup(key, table.cmp)
}

// Insert adds a key-value pair, splitting buckets and growing the
// directory as needed. Returns false on a duplicate key, on a full bucket
// that cannot split further, or on an allocation failure.
func (table *HashTable) Insert(key int64, value int64, _ *concurrency.Transaction) bool {
	hash := table.hash(key)
	headerGuard, err := table.pool.FetchPageWrite(table.headerPageId)
	if err != nil {
		return false
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	directoryIdx := header.HashToDirectoryIndex(hash)
	directoryPageId := header.GetDirectoryPageId(directoryIdx)
	if directoryPageId == INVALID_PAGE_ID {
		return table.insertToNewDirectory(header, directoryIdx, key, value)
	}
	directoryGuard, err := table.pool.FetchPageWrite(directoryPageId)
	if err != nil {
		return false
	}
	defer directoryGuard.Release()
	headerGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())

	bucketIdx := directory.HashToBucketIndex(hash)
	bucketGuard, err := table.pool.FetchPageWrite(directory.GetBucketPageId(bucketIdx))
	if err != nil {
		return false
	}
	defer func() { bucketGuard.Release() }()
	bucket := bucketFromPage(bucketGuard.GetPage())

	// A split can leave one side full when every migrated entry lands on
	// it, so splitting repeats until the target bucket has room or the
	// directory cannot grow further.
	for {
		if _, found := bucket.Lookup(key, table.cmp); found {
			return false
		}
		if !bucket.IsFull() {
			return bucket.Insert(key, value, table.cmp)
		}
		newGuard, ok := table.splitBucket(directory, bucket, bucketIdx)
		if !ok {
			return false
		}
		bucketIdx = directory.HashToBucketIndex(hash)
		if directory.GetBucketPageId(bucketIdx) == bucketGuard.GetPageNum() {
			newGuard.Release()
		} else {
			bucketGuard.Release()
			bucketGuard = newGuard
			bucket = bucketFromPage(newGuard.GetPage())
		}
	}
}

// insertToNewDirectory lazily populates a header slot: allocate and format
// a directory and its first bucket, install them, and insert the entry.
// The caller holds the header exclusively.
func (table *HashTable) insertToNewDirectory(header *headerPage, directoryIdx uint32, key int64, value int64) bool {
	directoryGuard, err := table.pool.NewPage()
	if err != nil {
		return false
	}
	defer directoryGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())
	directory.Init(table.directoryMaxDepth)

	bucketGuard, err := table.pool.NewPage()
	if err != nil {
		// Unwind the directory allocation; the header slot is untouched.
		directoryPageId := directoryGuard.GetPageNum()
		directoryGuard.Release()
		_ = table.pool.DeletePage(directoryPageId)
		return false
	}
	defer bucketGuard.Release()
	bucket := bucketFromPage(bucketGuard.GetPage())
	bucket.Init(table.bucketMaxSize)

	directory.SetBucketPageId(0, bucketGuard.GetPageNum())
	directory.SetLocalDepth(0, 0)
	header.SetDirectoryPageId(directoryIdx, directoryGuard.GetPageNum())
	return bucket.Insert(key, value, table.cmp)
}

// splitBucket splits the full bucket at bucketIdx in two, growing the
// directory if the bucket is at global depth. All slots of the bucket's
// congruence class move to the new local depth; the half matching the
// split image's new distinguishing bit is repointed at the new bucket,
// and the old bucket's entries are re-routed between the pair. Returns an
// exclusive guard on the new bucket, or ok=false if the directory is at
// max depth or allocation fails.
func (table *HashTable) splitBucket(directory *directoryPage, bucket *bucketPage, bucketIdx uint32) (*pager.WriteGuard, bool) {
	localDepth := directory.GetLocalDepth(bucketIdx)
	grew := false
	if localDepth == directory.GetGlobalDepth() {
		if !directory.IncrGlobalDepth() {
			return nil, false
		}
		grew = true
	}
	newGuard, err := table.pool.NewPage()
	if err != nil {
		if grew {
			directory.DecrGlobalDepth()
		}
		return nil, false
	}
	newBucket := bucketFromPage(newGuard.GetPage())
	newBucket.Init(table.bucketMaxSize)

	oldPageId := directory.GetBucketPageId(bucketIdx)
	newPageId := newGuard.GetPageNum()
	newDepth := localDepth + 1
	splitIdx := bucketIdx ^ (1 << localDepth)
	newMask := uint32(1)<<newDepth - 1
	size := directory.Size()
	for i := bucketIdx & (uint32(1)<<localDepth - 1); i < size; i += 1 << localDepth {
		if i&newMask == splitIdx&newMask {
			directory.SetBucketPageId(i, newPageId)
		}
		directory.SetLocalDepth(i, uint8(newDepth))
	}

	// Re-route the old bucket's entries under the deepened mask.
	count := bucket.Size()
	entries := make([]entry.Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		entries = append(entries, bucket.EntryAt(i))
	}
	bucket.Clear()
	for _, e := range entries {
		targetPageId := directory.GetBucketPageId(directory.HashToBucketIndex(table.hash(e.Key)))
		switch targetPageId {
		case oldPageId:
			bucket.Insert(e.Key, e.Value, table.cmp)
		case newPageId:
			newBucket.Insert(e.Key, e.Value, table.cmp)
		default:
			panic("hash: split routed an entry outside the split pair")
		}
	}
	return newGuard, true
}

// Remove deletes the entry with the given key, merging the bucket with its
// split image if the delete empties it and shrinking the directory while
// possible. Returns false if the key is absent.
func (table *HashTable) Remove(key int64, _ *concurrency.Transaction) bool {
	hash := table.hash(key)
	headerGuard, err := table.pool.FetchPageWrite(table.headerPageId)
	if err != nil {
		return false
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	directoryPageId := header.GetDirectoryPageId(header.HashToDirectoryIndex(hash))
	if directoryPageId == INVALID_PAGE_ID {
		return false
	}
	directoryGuard, err := table.pool.FetchPageWrite(directoryPageId)
	if err != nil {
		return false
	}
	defer directoryGuard.Release()
	headerGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())

	bucketIdx := directory.HashToBucketIndex(hash)
	bucketPageId := directory.GetBucketPageId(bucketIdx)
	if bucketPageId == INVALID_PAGE_ID {
		return false
	}
	bucketGuard, err := table.pool.FetchPageWrite(bucketPageId)
	if err != nil {
		return false
	}
	defer bucketGuard.Release()
	bucket := bucketFromPage(bucketGuard.GetPage())

	if !bucket.Remove(key, table.cmp) {
		return false
	}
	if bucket.IsEmpty() {
		table.mergeBucket(directory, bucket, bucketIdx)
		for directory.CanShrink() {
			directory.DecrGlobalDepth()
		}
	}
	return true
}

// mergeBucket repeatedly folds the bucket at bucketIdx together with its
// split image while the two are siblings at the same local depth and at
// least one of them is empty. The surviving bucket keeps the page at
// bucketIdx; the split image's page is freed. The caller holds the
// directory and the bucket exclusively.
func (table *HashTable) mergeBucket(directory *directoryPage, bucket *bucketPage, bucketIdx uint32) {
	for {
		if directory.GetLocalDepth(bucketIdx) == 0 {
			return
		}
		splitIdx := directory.GetSplitImageIndex(bucketIdx)
		if directory.GetLocalDepth(splitIdx) != directory.GetLocalDepth(bucketIdx) {
			return
		}
		splitPageId := directory.GetBucketPageId(splitIdx)
		splitGuard, err := table.pool.FetchPageWrite(splitPageId)
		if err != nil {
			return
		}
		splitBucket := bucketFromPage(splitGuard.GetPage())
		if !bucket.IsEmpty() && !splitBucket.IsEmpty() {
			splitGuard.Release()
			return
		}
		count := splitBucket.Size()
		for i := uint32(0); i < count; i++ {
			e := splitBucket.EntryAt(i)
			bucket.Insert(e.Key, e.Value, table.cmp)
		}
		splitBucket.Clear()
		splitGuard.Release()
		_ = table.pool.DeletePage(splitPageId)

		survivorPageId := directory.GetBucketPageId(bucketIdx)
		directory.DecrLocalDepth(bucketIdx)
		localDepth := directory.GetLocalDepth(bucketIdx)
		for i := bucketIdx & (uint32(1)<<localDepth - 1); i < directory.Size(); i += 1 << localDepth {
			directory.SetBucketPageId(i, survivorPageId)
			directory.SetLocalDepth(i, uint8(localDepth))
		}
	}
}

// PrintHT writes a representation of the whole table (header, directories
// and buckets) to the specified writer.
func (table *HashTable) PrintHT(w io.Writer) {
	headerGuard, err := table.pool.FetchPageRead(table.headerPageId)
	if err != nil {
		return
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	fmt.Fprintf(w, "====\nheader pn=%d max_depth=%d\n", table.headerPageId, header.MaxDepth())
	for idx := uint32(0); idx < header.MaxSize(); idx++ {
		directoryPageId := header.GetDirectoryPageId(idx)
		if directoryPageId == INVALID_PAGE_ID {
			continue
		}
		directoryGuard, err := table.pool.FetchPageRead(directoryPageId)
		if err != nil {
			continue
		}
		directory := directoryFromPage(directoryGuard.GetPage())
		fmt.Fprintf(w, "====\ndirectory idx=%d pn=%d global_depth=%d\n", idx, directoryPageId, directory.GetGlobalDepth())
		for i := uint32(0); i < directory.Size(); i++ {
			fmt.Fprintf(w, "slot %d: local_depth=%d ", i, directory.GetLocalDepth(i))
			bucketPageId := directory.GetBucketPageId(i)
			if bucketPageId == INVALID_PAGE_ID {
				io.WriteString(w, "bucket=invalid\n")
				continue
			}
			bucketGuard, err := table.pool.FetchPageRead(bucketPageId)
			if err != nil {
				continue
			}
			bucketFromPage(bucketGuard.GetPage()).Print(w)
			bucketGuard.Release()
		}
		directoryGuard.Release()
	}
	io.WriteString(w, "====\n")
}

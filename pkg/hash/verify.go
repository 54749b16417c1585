package hash

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// VerifyIntegrity walks the header, every live directory, and every bucket,
// checking the extendible-hash invariants. It returns an error describing
// the first violation found; any violation is a programmer error, not a
// recoverable condition.
func (table *HashTable) VerifyIntegrity() error {
	headerGuard, err := table.pool.FetchPageRead(table.headerPageId)
	if err != nil {
		return err
	}
	defer headerGuard.Release()
	header := headerFromPage(headerGuard.GetPage())
	if header.MaxDepth() > HEADER_MAX_DEPTH {
		return fmt.Errorf("header max depth %d out of range", header.MaxDepth())
	}
	for idx := uint32(0); idx < header.MaxSize(); idx++ {
		directoryPageId := header.GetDirectoryPageId(idx)
		if directoryPageId == INVALID_PAGE_ID {
			continue
		}
		if err := table.verifyDirectory(idx, directoryPageId); err != nil {
			return err
		}
	}
	return nil
}

func (table *HashTable) verifyDirectory(headerIdx uint32, directoryPageId int64) error {
	directoryGuard, err := table.pool.FetchPageRead(directoryPageId)
	if err != nil {
		return err
	}
	defer directoryGuard.Release()
	directory := directoryFromPage(directoryGuard.GetPage())
	global := directory.GetGlobalDepth()
	if global > directory.MaxDepth() || directory.MaxDepth() > DIRECTORY_MAX_DEPTH {
		return fmt.Errorf("directory %d: depth out of range (global=%d max=%d)", headerIdx, global, directory.MaxDepth())
	}
	size := directory.Size()

	// Walk each congruence class once. Every slot sharing a bucket page id
	// must sit in the class selected by the owner's low localDepth bits,
	// carry the same local depth, and the class must cover exactly
	// 2^(global-local) slots.
	visited := bitset.New(uint(size))
	owners := make(map[int64]uint32)
	maxLocal := uint32(0)
	for i := uint32(0); i < size; i++ {
		local := directory.GetLocalDepth(i)
		if local > global {
			return fmt.Errorf("directory %d slot %d: local depth %d exceeds global depth %d", headerIdx, i, local, global)
		}
		if local > maxLocal {
			maxLocal = local
		}
		if visited.Test(uint(i)) {
			continue
		}
		pageId := directory.GetBucketPageId(i)
		if pageId == INVALID_PAGE_ID {
			return fmt.Errorf("directory %d slot %d: invalid bucket page id", headerIdx, i)
		}
		if owner, shared := owners[pageId]; shared {
			return fmt.Errorf("directory %d slot %d: bucket pn=%d is also used by the split class of slot %d", headerIdx, i, pageId, owner)
		}
		owners[pageId] = i
		classSize := uint32(0)
		for j := i & (uint32(1)<<local - 1); j < size; j += 1 << local {
			if directory.GetBucketPageId(j) != pageId {
				return fmt.Errorf("directory %d slot %d: split class member %d points elsewhere", headerIdx, i, j)
			}
			if directory.GetLocalDepth(j) != local {
				return fmt.Errorf("directory %d slot %d: split class member %d has local depth %d, want %d",
					headerIdx, i, j, directory.GetLocalDepth(j), local)
			}
			visited.Set(uint(j))
			classSize++
		}
		if classSize != uint32(1)<<(global-local) {
			return fmt.Errorf("directory %d slot %d: bucket shared by %d slots, want %d", headerIdx, i, classSize, uint32(1)<<(global-local))
		}
		if err := table.verifyBucket(directory, pageId); err != nil {
			return err
		}
	}
	if visited.Count() != uint(size) {
		return fmt.Errorf("directory %d: %d of %d slots unaccounted for", headerIdx, uint(size)-visited.Count(), size)
	}
	if global != maxLocal {
		return fmt.Errorf("directory %d: global depth %d but max local depth %d", headerIdx, global, maxLocal)
	}
	return nil
}

func (table *HashTable) verifyBucket(directory *directoryPage, pageId int64) error {
	bucketGuard, err := table.pool.FetchPageRead(pageId)
	if err != nil {
		return err
	}
	defer bucketGuard.Release()
	bucket := bucketFromPage(bucketGuard.GetPage())
	if bucket.Size() > bucket.MaxSize() {
		return fmt.Errorf("bucket pn=%d: size %d exceeds max size %d", pageId, bucket.Size(), bucket.MaxSize())
	}
	seen := make(map[int64]struct{}, bucket.Size())
	for i := uint32(0); i < bucket.Size(); i++ {
		key := bucket.KeyAt(i)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("bucket pn=%d: duplicate key %d", pageId, key)
		}
		seen[key] = struct{}{}
		routed := directory.HashToBucketIndex(table.hash(key))
		if directory.GetBucketPageId(routed) != pageId {
			return fmt.Errorf("bucket pn=%d: key %d routes to slot %d (pn=%d), not here",
				pageId, key, routed, directory.GetBucketPageId(routed))
		}
	}
	return nil
}

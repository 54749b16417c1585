package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

// directoryPage views a page as an extendible-hash directory: a global
// depth plus, per slot, a bucket page id and a local depth. Only the first
// 2^globalDepth slots are live.
type directoryPage struct {
	page *pager.Page
}

// directoryFromPage interprets the given page as a directory page. The
// caller must hold a guard on the page.
func directoryFromPage(page *pager.Page) *directoryPage {
	return &directoryPage{page: page}
}

// Init formats the page as a directory at global depth 0 with the given
// max depth. The single live slot starts at local depth 0 with no bucket;
// the caller assigns the first bucket page id immediately after allocating
// it.
func (dir *directoryPage) Init(maxDepth uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, maxDepth)
	dir.page.Update(buf, DIRECTORY_DEPTH_OFFSET, 4)
	binary.LittleEndian.PutUint32(buf, 0)
	dir.page.Update(buf, DIRECTORY_GLOBAL_DEPTH_OFFSET, 4)
	for i := uint32(0); i < DIRECTORY_ARRAY_SIZE; i++ {
		dir.SetLocalDepth(i, 0)
		dir.SetBucketPageId(i, INVALID_PAGE_ID)
	}
}

// MaxDepth returns the directory's max depth, fixed at creation.
func (dir *directoryPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(dir.page.GetData()[DIRECTORY_DEPTH_OFFSET:])
}

// MaxSize returns the number of slots live at max depth.
func (dir *directoryPage) MaxSize() uint32 {
	return 1 << dir.MaxDepth()
}

// GetGlobalDepth returns the number of digest bits the directory currently
// distinguishes.
func (dir *directoryPage) GetGlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(dir.page.GetData()[DIRECTORY_GLOBAL_DEPTH_OFFSET:])
}

func (dir *directoryPage) setGlobalDepth(depth uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, depth)
	dir.page.Update(buf, DIRECTORY_GLOBAL_DEPTH_OFFSET, 4)
}

// Size returns the number of live slots, 2^globalDepth.
func (dir *directoryPage) Size() uint32 {
	return 1 << dir.GetGlobalDepth()
}

// GetGlobalDepthMask returns the low-bits mask selecting a live slot.
func (dir *directoryPage) GetGlobalDepthMask() uint32 {
	return dir.Size() - 1
}

// HashToBucketIndex routes a digest to a live slot using its low
// globalDepth bits.
func (dir *directoryPage) HashToBucketIndex(hash uint32) uint32 {
	return hash & dir.GetGlobalDepthMask()
}

// GetBucketPageId returns the bucket page id stored at the given slot.
func (dir *directoryPage) GetBucketPageId(idx uint32) int64 {
	raw := binary.LittleEndian.Uint32(dir.page.GetData()[DIRECTORY_IDS_OFFSET+int64(idx)*4:])
	if raw == invalidPageIdOnDisk {
		return INVALID_PAGE_ID
	}
	return int64(raw)
}

// SetBucketPageId stores a bucket page id at the given slot.
func (dir *directoryPage) SetBucketPageId(idx uint32, pagenum int64) {
	raw := invalidPageIdOnDisk
	if pagenum != INVALID_PAGE_ID {
		raw = uint32(pagenum)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, raw)
	dir.page.Update(buf, DIRECTORY_IDS_OFFSET+int64(idx)*4, 4)
}

// GetLocalDepth returns the local depth of the bucket at the given slot.
func (dir *directoryPage) GetLocalDepth(idx uint32) uint32 {
	return uint32(dir.page.GetData()[DIRECTORY_LOCAL_DEPTHS_OFFSET+int64(idx)])
}

// SetLocalDepth sets the local depth of the bucket at the given slot.
func (dir *directoryPage) SetLocalDepth(idx uint32, depth uint8) {
	dir.page.Update([]byte{depth}, DIRECTORY_LOCAL_DEPTHS_OFFSET+int64(idx), 1)
}

// IncrLocalDepth increments the local depth at the given slot.
func (dir *directoryPage) IncrLocalDepth(idx uint32) {
	dir.SetLocalDepth(idx, uint8(dir.GetLocalDepth(idx)+1))
}

// DecrLocalDepth decrements the local depth at the given slot.
func (dir *directoryPage) DecrLocalDepth(idx uint32) {
	depth := dir.GetLocalDepth(idx)
	if depth == 0 {
		return
	}
	dir.SetLocalDepth(idx, uint8(depth-1))
}

// GetSplitImageIndex returns the slot's sibling at its local depth, the
// slot differing in bit localDepth-1. Requires a local depth of at least 1.
func (dir *directoryPage) GetSplitImageIndex(idx uint32) uint32 {
	return idx ^ (1 << (dir.GetLocalDepth(idx) - 1))
}

// IncrGlobalDepth doubles the live prefix: every newly live slot inherits
// the bucket page id and local depth of the slot it mirrors. Returns false
// if the directory is already at max depth.
func (dir *directoryPage) IncrGlobalDepth() bool {
	global := dir.GetGlobalDepth()
	if global >= dir.MaxDepth() {
		return false
	}
	size := uint32(1) << global
	for i := uint32(0); i < size; i++ {
		dir.SetBucketPageId(size+i, dir.GetBucketPageId(i))
		dir.SetLocalDepth(size+i, uint8(dir.GetLocalDepth(i)))
	}
	dir.setGlobalDepth(global + 1)
	return true
}

// DecrGlobalDepth halves the live prefix. The caller must have checked
// CanShrink.
func (dir *directoryPage) DecrGlobalDepth() {
	global := dir.GetGlobalDepth()
	if global == 0 {
		return
	}
	dir.setGlobalDepth(global - 1)
}

// CanShrink reports whether every live slot has a local depth strictly
// below the global depth, in which case the top distinguishing bit is
// unused and the directory can halve.
func (dir *directoryPage) CanShrink() bool {
	global := dir.GetGlobalDepth()
	if global == 0 {
		return false
	}
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.GetLocalDepth(i) >= global {
			return false
		}
	}
	return true
}

package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

// headerPage views a page as the root of the index: a fixed array of
// directory page ids addressed by the top maxDepth bits of a key's digest.
// The header is created once and never split or grown.
type headerPage struct {
	page *pager.Page
}

// headerFromPage interprets the given page as a header page. The caller
// must hold a guard on the page.
func headerFromPage(page *pager.Page) *headerPage {
	return &headerPage{page: page}
}

// Init formats the page as an empty header with the given max depth. Every
// directory slot starts out invalid.
func (header *headerPage) Init(maxDepth uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, maxDepth)
	header.page.Update(buf, HEADER_DEPTH_OFFSET, 4)
	binary.LittleEndian.PutUint32(buf, invalidPageIdOnDisk)
	for i := uint32(0); i < HEADER_ARRAY_SIZE; i++ {
		header.page.Update(buf, HEADER_ARRAY_OFFSET+int64(i)*4, 4)
	}
}

// MaxDepth returns the header's max depth, fixed at creation.
func (header *headerPage) MaxDepth() uint32 {
	return binary.LittleEndian.Uint32(header.page.GetData()[HEADER_DEPTH_OFFSET:])
}

// MaxSize returns the number of directory slots in the header.
func (header *headerPage) MaxSize() uint32 {
	return 1 << header.MaxDepth()
}

// HashToDirectoryIndex routes a digest to a header slot using its top
// MaxDepth bits.
func (header *headerPage) HashToDirectoryIndex(hash uint32) uint32 {
	maxDepth := header.MaxDepth()
	if maxDepth == 0 {
		return 0
	}
	return hash >> (32 - maxDepth)
}

// GetDirectoryPageId returns the directory page id stored at the given
// slot, or INVALID_PAGE_ID if no directory has been allocated for it.
func (header *headerPage) GetDirectoryPageId(idx uint32) int64 {
	raw := binary.LittleEndian.Uint32(header.page.GetData()[HEADER_ARRAY_OFFSET+int64(idx)*4:])
	if raw == invalidPageIdOnDisk {
		return INVALID_PAGE_ID
	}
	return int64(raw)
}

// SetDirectoryPageId stores a directory page id at the given slot.
func (header *headerPage) SetDirectoryPageId(idx uint32, pagenum int64) {
	raw := invalidPageIdOnDisk
	if pagenum != INVALID_PAGE_ID {
		raw = uint32(pagenum)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, raw)
	header.page.Update(buf, HEADER_ARRAY_OFFSET+int64(idx)*4, 4)
}

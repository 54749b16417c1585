package pager

import (
	"sync"
	"sync/atomic"
)

// NoPage is the pagenum for when there is no page being held.
const NoPage int64 = -1

// Page caches a page from disk and stores additional metadata.
type Page struct {
	pool     *BufferPool  // The buffer pool this page's frame belongs to
	pagenum  int64        // Unique identifier also denoting the page's position in the backing file
	pinCount atomic.Int64 // The number of active references to this page
	dirty    bool         // Whether the page's data has changed and needs to be written to disk
	rwlock   sync.RWMutex // Reader-writer latch on the page
	data     []byte       // The actual bytes of the page
}

// GetPageNum returns the page's pagenum (unique identifier).
func (page *Page) GetPageNum() int64 {
	return page.pagenum
}

// IsDirty reports whether the page's data has changed and needs to be
// written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// SetDirty changes the dirty status of a page.
func (page *Page) SetDirty(dirty bool) {
	page.dirty = dirty
}

// GetData returns the byte data held by the page.
func (page *Page) GetData() []byte {
	return page.data
}

// Update writes `size` bytes of the given data slice into the page at the
// specified offset, marking the page dirty.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// get increments the pin count, indicating that another process is using
// this page.
func (page *Page) get() {
	page.pinCount.Add(1)
}

// put decrements the pin count, indicating that a process is done using
// this page.
func (page *Page) put() int64 {
	return page.pinCount.Add(-1)
}

// [CONCURRENCY] Grab a writers latch on the page.
func (page *Page) WLock() {
	page.rwlock.Lock()
}

// [CONCURRENCY] Release a writers latch.
func (page *Page) WUnlock() {
	page.rwlock.Unlock()
}

// [CONCURRENCY] Grab a readers latch on the page.
func (page *Page) RLock() {
	page.rwlock.RLock()
}

// [CONCURRENCY] Release a readers latch.
func (page *Page) RUnlock() {
	page.rwlock.RUnlock()
}

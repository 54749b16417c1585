// Package pager implements the buffer pool managing fixed-size pages of an
// index file: frame allocation, fetch/pin/unpin, dirty tracking, and
// eviction. Pages are handed out through latching guards.
package pager

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"hashdb/pkg/config"
	"hashdb/pkg/list"

	"github.com/ncw/directio"
)

// Pagesize is the size of an individual page - defaults to 4kb.
const Pagesize int64 = directio.BlockSize

// Error for when there are no free/unpinned frames to be used.
var ErrRanOutOfPages = errors.New("no available pages")

// BufferPool manages the pages of an index file through a fixed set of
// in-memory frames.
type BufferPool struct {
	file         *os.File          // File descriptor for the file that backs this pool on disk
	numPages     int64             // The number of page slots in the backing file
	freePageNums []int64           // Pagenums released by DeletePage, reused before growing the file
	freeFrames   *list.List[*Page] // Pre-allocated but unused frames
	unpinnedList *list.List[*Page] // In-memory pages not currently in use, eviction candidates
	pinnedList   *list.List[*Page] // In-memory pages currently being used
	// The page table, which maps pagenums to the link holding their frame.
	pageTable map[int64]*list.Link[*Page]
	ptMtx     sync.Mutex // Protects the page table and lists for concurrent use
}

// New constructs a BufferPool backed by a file at the specified path,
// creating the file if needed.
func New(filePath string) (*BufferPool, error) {
	pool := &BufferPool{
		freeFrames:   list.NewList[*Page](),
		unpinnedList: list.NewList[*Page](),
		pinnedList:   list.NewList[*Page](),
		pageTable:    make(map[int64]*list.Link[*Page]),
	}
	frames := directio.AlignedBlock(int(Pagesize * config.MaxPagesInBuffer))
	for i := 0; i < config.MaxPagesInBuffer; i++ {
		page := &Page{
			pool:    pool,
			pagenum: NoPage,
			data:    frames[i*int(Pagesize) : (i+1)*int(Pagesize)],
		}
		pool.freeFrames.PushTail(page)
	}
	if err := pool.open(filePath); err != nil {
		return nil, err
	}
	return pool, nil
}

// open points the pool at the file at filePath, creating prerequisite
// directories and the file itself as needed. Errors if an existing file's
// length is not page-aligned.
func (pool *BufferPool) open(filePath string) error {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	if info.Size()%Pagesize != 0 {
		file.Close()
		return errors.New("index file has been corrupted")
	}
	pool.file = file
	pool.numPages = info.Size() / Pagesize
	return nil
}

// GetFileName returns the path used to open the pool's backing file.
func (pool *BufferPool) GetFileName() string {
	return pool.file.Name()
}

// GetNumPages returns the number of page slots in the backing file.
func (pool *BufferPool) GetNumPages() int64 {
	return pool.numPages
}

// Close flushes all dirty pages to disk and closes the backing file.
// Errors if any page is still pinned.
func (pool *BufferPool) Close() error {
	pool.ptMtx.Lock()
	defer pool.ptMtx.Unlock()
	if pool.pinnedList.PeekHead() != nil {
		return errors.New("pages are still pinned on close")
	}
	pool.flushAllPages()
	return pool.file.Close()
}

// FlushAllPages writes every dirty page out to disk.
func (pool *BufferPool) FlushAllPages() {
	pool.ptMtx.Lock()
	defer pool.ptMtx.Unlock()
	pool.flushAllPages()
}

func (pool *BufferPool) flushAllPages() {
	pool.pinnedList.Each(pool.flushPage)
	pool.unpinnedList.Each(pool.flushPage)
}

// flushPage writes a page's data to disk if it is dirty.
func (pool *BufferPool) flushPage(page *Page) {
	if page.IsDirty() {
		pool.file.WriteAt(page.data, page.pagenum*Pagesize)
		page.SetDirty(false)
	}
}

// fillPageFromDisk populates a page's data from the data currently on disk.
func (pool *BufferPool) fillPageFromDisk(page *Page) error {
	if _, err := pool.file.Seek(page.pagenum*Pagesize, 0); err != nil {
		return err
	}
	if _, err := pool.file.Read(page.data); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// nextFrame returns a currently unused frame from the free or unpinned
// list, or ErrRanOutOfPages if every frame is pinned. The ptMtx must be
// held on entry.
func (pool *BufferPool) nextFrame(pagenum int64) (*Page, error) {
	var page *Page
	if freeLink := pool.freeFrames.PeekHead(); freeLink != nil {
		freeLink.PopSelf()
		page = freeLink.Value
	} else if unpinnedLink := pool.unpinnedList.PeekHead(); unpinnedLink != nil {
		unpinnedLink.PopSelf()
		page = unpinnedLink.Value
		pool.flushPage(page)
		delete(pool.pageTable, page.pagenum)
	} else {
		return nil, ErrRanOutOfPages
	}
	page.pagenum = pagenum
	page.dirty = false
	page.pinCount.Store(1)
	return page, nil
}

// NewPage allocates a new page and returns an exclusive guard on it.
// Pagenums released by DeletePage are reused before the file is grown.
// The page's frame is zeroed.
func (pool *BufferPool) NewPage() (*WriteGuard, error) {
	pool.ptMtx.Lock()
	var pagenum int64
	if n := len(pool.freePageNums); n > 0 {
		pagenum = pool.freePageNums[n-1]
		pool.freePageNums = pool.freePageNums[:n-1]
	} else {
		pagenum = pool.numPages
	}
	page, err := pool.nextFrame(pagenum)
	if err != nil {
		pool.ptMtx.Unlock()
		return nil, err
	}
	clear(page.data)
	page.dirty = true
	pool.pageTable[pagenum] = pool.pinnedList.PushTail(page)
	if pagenum == pool.numPages {
		pool.numPages++
	}
	pool.ptMtx.Unlock()
	// The page is invisible to other threads until its pagenum is
	// published in the index, so the latch is uncontended here.
	page.WLock()
	return &WriteGuard{page: page}, nil
}

// getPage pins and returns the page with the given pagenum, paging it in
// from disk if it is not resident.
func (pool *BufferPool) getPage(pagenum int64) (*Page, error) {
	pool.ptMtx.Lock()
	defer pool.ptMtx.Unlock()
	if pagenum < 0 || pagenum >= pool.numPages {
		return nil, errors.New("invalid pagenum")
	}
	if link, ok := pool.pageTable[pagenum]; ok {
		page := link.Value
		if link.GetList() == pool.unpinnedList {
			link.PopSelf()
			pool.pageTable[pagenum] = pool.pinnedList.PushTail(page)
		}
		page.get()
		return page, nil
	}
	page, err := pool.nextFrame(pagenum)
	if err != nil {
		return nil, err
	}
	if err = pool.fillPageFromDisk(page); err != nil {
		pool.freeFrames.PushTail(page)
		return nil, err
	}
	pool.pageTable[pagenum] = pool.pinnedList.PushTail(page)
	return page, nil
}

// FetchPageRead pins the given page and returns a shared guard on it.
func (pool *BufferPool) FetchPageRead(pagenum int64) (*ReadGuard, error) {
	page, err := pool.getPage(pagenum)
	if err != nil {
		return nil, err
	}
	page.RLock()
	return &ReadGuard{page: page}, nil
}

// FetchPageWrite pins the given page and returns an exclusive guard on it.
func (pool *BufferPool) FetchPageWrite(pagenum int64) (*WriteGuard, error) {
	page, err := pool.getPage(pagenum)
	if err != nil {
		return nil, err
	}
	page.WLock()
	return &WriteGuard{page: page}, nil
}

// putPage releases a reference to a page, moving it to the unpinned list
// once no references remain.
func (pool *BufferPool) putPage(page *Page) error {
	pool.ptMtx.Lock()
	defer pool.ptMtx.Unlock()
	ret := page.put()
	if ret == 0 {
		link := pool.pageTable[page.pagenum]
		link.PopSelf()
		pool.pageTable[page.pagenum] = pool.unpinnedList.PushTail(page)
	}
	if ret < 0 {
		return errors.New("pinCount for page is < 0")
	}
	return nil
}

// DeletePage releases the given page slot for reuse by a later NewPage.
// The caller must hold no guard on the page. Errors if the page is still
// pinned.
func (pool *BufferPool) DeletePage(pagenum int64) error {
	pool.ptMtx.Lock()
	defer pool.ptMtx.Unlock()
	if link, ok := pool.pageTable[pagenum]; ok {
		page := link.Value
		if page.pinCount.Load() > 0 {
			return errors.New("cannot delete a pinned page")
		}
		link.PopSelf()
		delete(pool.pageTable, pagenum)
		page.dirty = false
		page.pagenum = NoPage
		pool.freeFrames.PushTail(page)
	}
	pool.freePageNums = append(pool.freePageNums, pagenum)
	return nil
}

package pager

// A page guard couples a latch and a pin on a single page. Releasing the
// guard unlatches and unpins the page; callers should defer Release on
// every acquisition so the page is freed on all exit paths. Release is
// idempotent, so a guard can also be dropped early to crab down the tree.

// ReadGuard confers shared access to one page.
type ReadGuard struct {
	page     *Page
	released bool
}

// GetPage returns the guarded page. The caller must not mutate it.
func (guard *ReadGuard) GetPage() *Page {
	return guard.page
}

// GetPageNum returns the guarded page's pagenum.
func (guard *ReadGuard) GetPageNum() int64 {
	return guard.page.pagenum
}

// Release drops the read latch and unpins the page.
func (guard *ReadGuard) Release() {
	if guard.released {
		return
	}
	guard.released = true
	guard.page.RUnlock()
	guard.page.pool.putPage(guard.page)
}

// WriteGuard confers exclusive access to one page.
type WriteGuard struct {
	page     *Page
	released bool
}

// GetPage returns the guarded page. Mutations must go through
// [Page.Update] so the page is marked dirty before the guard drops.
func (guard *WriteGuard) GetPage() *Page {
	return guard.page
}

// GetPageNum returns the guarded page's pagenum.
func (guard *WriteGuard) GetPageNum() int64 {
	return guard.page.pagenum
}

// Release drops the write latch and unpins the page.
func (guard *WriteGuard) Release() {
	if guard.released {
		return
	}
	guard.released = true
	guard.page.WUnlock()
	guard.page.pool.putPage(guard.page)
}
